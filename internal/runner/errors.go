package runner

import "fmt"

// ErrSearchNotFound indicates the search does not exist
type ErrSearchNotFound struct {
	Slug string
}

func (e *ErrSearchNotFound) Error() string {
	return fmt.Sprintf("search not found: %s", e.Slug)
}

// ErrSearchExists indicates a search with the same slug already exists
type ErrSearchExists struct {
	Slug string
}

func (e *ErrSearchExists) Error() string {
	return fmt.Sprintf("search already exists: %s", e.Slug)
}

// ErrJobNotFound indicates the job does not exist
type ErrJobNotFound struct {
	ID string
}

func (e *ErrJobNotFound) Error() string {
	return fmt.Sprintf("job not found: %s", e.ID)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}
