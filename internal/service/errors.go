package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrUploadJobNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "upload job")
}

type ErrCollectionNotFound struct {
	error
}

func NewErrCollectionNotFound(name string) *ErrCollectionNotFound {
	return &ErrCollectionNotFound{fmt.Errorf("collection %q not found", name)}
}

type ErrInvalidUpload struct {
	error
}

func NewErrUnsupportedFormat(filename string) *ErrInvalidUpload {
	return &ErrInvalidUpload{fmt.Errorf("unsupported spreadsheet format: %s", filename)}
}

func NewErrInvalidNotifyAddress(address string) *ErrInvalidUpload {
	return &ErrInvalidUpload{fmt.Errorf("invalid notification address: %s", address)}
}

func NewErrInvalidMappings(message string) *ErrInvalidUpload {
	return &ErrInvalidUpload{fmt.Errorf("invalid field mappings: %s", message)}
}

type ErrJobNotPending struct {
	error
}

func NewErrJobNotPending(id uuid.UUID, status string) *ErrJobNotPending {
	return &ErrJobNotPending{fmt.Errorf("upload job %s is %s, not pending", id, status)}
}

type ErrReportNotReady struct {
	error
}

func NewErrReportNotReady(id uuid.UUID) *ErrReportNotReady {
	return &ErrReportNotReady{fmt.Errorf("upload job %s has no report yet", id)}
}
