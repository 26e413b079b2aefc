package core

import (
	"errors"
	"fmt"
	"net/http"
)

type UploadErrorType string

const (
	ErrKeyInvalidInput       UploadErrorType = "ErrInvalidInput"
	ErrKeySessionNotFound    UploadErrorType = "ErrSessionNotFound"
	ErrKeyStorageUnavailable UploadErrorType = "ErrStorageUnavailable"
	ErrKeyStorageIntegrity   UploadErrorType = "ErrStorageIntegrity"
	ErrKeyIncompleteUpload   UploadErrorType = "ErrIncompleteUpload"
	ErrKeySessionBusy        UploadErrorType = "ErrSessionBusy"
	ErrKeyFileNotFound       UploadErrorType = "ErrFileNotFound"
	ErrKeyUploadTooLarge     UploadErrorType = "ErrUploadTooLarge"
	ErrKeyDatabaseFailed     UploadErrorType = "ErrDatabaseFailed"
)

var defaultUploadErrorMessages = map[UploadErrorType]string{
	ErrKeyInvalidInput:       "The upload request is missing a field or contains an invalid value.",
	ErrKeySessionNotFound:    "The upload session does not exist or has already finished.",
	ErrKeyStorageUnavailable: "The object store could not be reached, please retry.",
	ErrKeyStorageIntegrity:   "The uploaded parts do not match the declared file.",
	ErrKeyIncompleteUpload:   "No parts have been uploaded for this session.",
	ErrKeySessionBusy:        "The upload session is being finalized.",
	ErrKeyFileNotFound:       "The requested file was not found.",
	ErrKeyUploadTooLarge:     "The file is too large for this upload method.",
	ErrKeyDatabaseFailed:     "A database operation failed.",
}

var (
	ErrorCodeToHttpStatus = map[UploadErrorType]int{
		ErrKeyInvalidInput:       http.StatusBadRequest,
		ErrKeySessionNotFound:    http.StatusBadRequest,
		ErrKeyStorageUnavailable: http.StatusServiceUnavailable,
		ErrKeyStorageIntegrity:   http.StatusConflict,
		ErrKeyIncompleteUpload:   http.StatusBadRequest,
		ErrKeySessionBusy:        http.StatusConflict,
		ErrKeyFileNotFound:       http.StatusNotFound,
		ErrKeyUploadTooLarge:     http.StatusRequestEntityTooLarge,
		ErrKeyDatabaseFailed:     http.StatusInternalServerError,
	}
)

type UploadError struct {
	Key     UploadErrorType
	Message string
	Err     error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func (e *UploadError) IsErrorType(key UploadErrorType) bool {
	return e.Key == key
}

func (e *UploadError) HttpStatus() int {
	if status, exists := ErrorCodeToHttpStatus[e.Key]; exists {
		return status
	}
	return http.StatusInternalServerError
}

func NewUploadError(key UploadErrorType, err error, customMessage ...string) *UploadError {
	message, exists := defaultUploadErrorMessages[key]
	if !exists {
		message = "An unknown error occurred"
	}
	if len(customMessage) > 0 {
		message = customMessage[0]
	}
	return &UploadError{
		Key:     key,
		Message: message,
		Err:     err,
	}
}

func AsUploadError(err error) *UploadError {
	var uploadErr *UploadError
	if errors.As(err, &uploadErr) {
		return uploadErr
	}
	return nil
}

func IsUploadErrorType(err error, key UploadErrorType) bool {
	uploadErr := AsUploadError(err)
	return uploadErr != nil && uploadErr.IsErrorType(key)
}
