package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubops/querycsv/internal/config"
	"github.com/clubops/querycsv/internal/mapping"
	"github.com/clubops/querycsv/internal/registry"
	"github.com/clubops/querycsv/internal/schema"
	"github.com/clubops/querycsv/internal/service"
	"github.com/clubops/querycsv/internal/store"
	"github.com/clubops/querycsv/internal/store/model"
)

type fakeQueue struct {
	enqueued []uuid.UUID
}

func (q *fakeQueue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	q.enqueued = append(q.enqueued, jobID)
	return nil
}

func (q *fakeQueue) Close(ctx context.Context) error { return nil }

func setup(t *testing.T) (*service.UploadService, *fakeQueue, store.Store) {
	t.Helper()

	cfg := config.NewDefault()
	db, err := store.InitDB(cfg)
	require.NoError(t, err)

	st := store.NewStore(db)
	require.NoError(t, st.InitialMigration())
	t.Cleanup(func() {
		db.Exec("DELETE FROM document_fields;")
		db.Exec("DELETE FROM documents;")
		db.Exec("DELETE FROM upload_jobs;")
		st.Close()
	})

	reg := registry.New()
	s := &schema.Schema{
		Name: "contacts",
		Fields: []schema.Field{
			{Name: "email", Required: true, Unique: true},
			{Name: "first_name"},
			{Name: "tags", Many: true, Fields: []schema.Field{{Name: "name"}}},
		},
	}
	require.NoError(t, reg.Register(s, st.Document()))

	q := &fakeQueue{}
	return service.NewUploadService(st, reg, q, t.TempDir()), q, st
}

func csvUpload(collection string) service.UploadForm {
	return service.UploadForm{
		Collection: collection,
		Filename:   "contacts.csv",
		Content:    strings.NewReader("E-mail,first_name\nada@example.com,Ada\n"),
	}
}

func TestCreateUpload(t *testing.T) {
	svc, q, st := setup(t)

	job, err := svc.CreateUpload(context.Background(), csvUpload("contacts"))
	require.NoError(t, err)

	assert.Equal(t, model.UploadStatusPending, job.Status)
	assert.Empty(t, q.enqueued)

	stored, err := st.Job().Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "contacts", stored.SchemaRef)
	assert.NotEmpty(t, stored.File)
}

func TestCreateUploadAndProcess(t *testing.T) {
	svc, q, _ := setup(t)

	form := csvUpload("contacts")
	form.Process = true

	job, err := svc.CreateUpload(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{job.ID}, q.enqueued)
}

func TestCreateUploadValidation(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.CreateUpload(context.Background(), csvUpload("unknown"))
	assert.IsType(t, &service.ErrCollectionNotFound{}, err)

	form := csvUpload("contacts")
	form.Filename = "contacts.pdf"
	_, err = svc.CreateUpload(context.Background(), form)
	assert.IsType(t, &service.ErrInvalidUpload{}, err)

	form = csvUpload("contacts")
	form.NotifyAddress = "not-an-email"
	_, err = svc.CreateUpload(context.Background(), form)
	assert.IsType(t, &service.ErrInvalidUpload{}, err)

	form = csvUpload("contacts")
	form.Mappings = []mapping.FieldMapping{{ColumnName: "", FieldName: "email"}}
	_, err = svc.CreateUpload(context.Background(), form)
	assert.IsType(t, &service.ErrInvalidUpload{}, err)
}

func TestReviewHeaders(t *testing.T) {
	svc, _, _ := setup(t)

	job, err := svc.CreateUpload(context.Background(), csvUpload("contacts"))
	require.NoError(t, err)

	review, err := svc.ReviewHeaders(context.Background(), job.ID)
	require.NoError(t, err)

	require.Len(t, review.Headers, 2)
	// "E-mail" normalizes to "e-mail", which is no known field.
	assert.Equal(t, "E-mail", review.Headers[0].Column)
	assert.False(t, review.Headers[0].Known)
	assert.True(t, review.Headers[1].Known)
	assert.Equal(t, "first_name", review.Headers[1].MappedTo)
	assert.Contains(t, review.Fields, "email")
	assert.Contains(t, review.Actions, mapping.ActionSkip)
}

func TestAddMappingsThenReview(t *testing.T) {
	svc, _, _ := setup(t)

	job, err := svc.CreateUpload(context.Background(), csvUpload("contacts"))
	require.NoError(t, err)

	job, err = svc.AddMappings(context.Background(), job.ID, []mapping.FieldMapping{
		{ColumnName: "E-mail", FieldName: "email"},
	})
	require.NoError(t, err)
	assert.Len(t, job.Mappings(), 1)

	review, err := svc.ReviewHeaders(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, review.Headers[0].Known)
	assert.Equal(t, "email", review.Headers[0].MappedTo)
}

func TestAddMappingsRejectsStaleColumns(t *testing.T) {
	svc, _, _ := setup(t)

	job, err := svc.CreateUpload(context.Background(), csvUpload("contacts"))
	require.NoError(t, err)

	_, err = svc.AddMappings(context.Background(), job.ID, []mapping.FieldMapping{
		{ColumnName: "No Such Column", FieldName: "email"},
	})
	assert.IsType(t, &service.ErrInvalidUpload{}, err)
}

func TestAddMappingsRequiresPending(t *testing.T) {
	svc, _, st := setup(t)

	job, err := svc.CreateUpload(context.Background(), csvUpload("contacts"))
	require.NoError(t, err)
	require.NoError(t, st.Job().UpdateStatus(context.Background(), job.ID, model.UploadStatusProcessing, nil))

	_, err = svc.AddMappings(context.Background(), job.ID, []mapping.FieldMapping{
		{ColumnName: "E-mail", FieldName: "email"},
	})
	assert.IsType(t, &service.ErrJobNotPending{}, err)
}

func TestProcessEnqueuesPendingJob(t *testing.T) {
	svc, q, _ := setup(t)

	job, err := svc.CreateUpload(context.Background(), csvUpload("contacts"))
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{job.ID}, q.enqueued)

	_, err = svc.Process(context.Background(), uuid.New())
	assert.IsType(t, &service.ErrResourceNotFound{}, err)
}

func TestReportNotReady(t *testing.T) {
	svc, _, _ := setup(t)

	job, err := svc.CreateUpload(context.Background(), csvUpload("contacts"))
	require.NoError(t, err)

	_, _, err = svc.Report(context.Background(), job.ID)
	assert.IsType(t, &service.ErrReportNotReady{}, err)
}
