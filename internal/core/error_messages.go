// Package core error codes.
//
// # Error Codes Reference
//
// User-facing messages carry a code that users can quote to support. Codes
// are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	          Patterns: "file too large", "request body too large"
//	FILE002 - Unsupported file type (not .csv, .xlsx or .xls)
//	          Patterns: "unsupported file type"
//	FILE003 - File could not be read
//	          Patterns: "malformed input"
//	FILE004 - No file selected
//	          Patterns: "no file provided"
//	FILE005 - File has no data rows
//	          Patterns: "no records to publish"
//
// # Publish Errors (PUB001-PUB099)
//
//	PUB001 - Dataset could not be created; nothing was written
//	         Patterns: "catalog write failed"
//	PUB002 - Publish stopped part way; some rows were saved
//	         Patterns: "chunk commit failed"
//	PUB003 - A publish is already running
//	         Patterns: "publish already in progress"
//	PUB004 - Step not available right now
//	         Patterns: "invalid workflow transition"
//	PUB005 - Too many publishes running
//	         Patterns: "too many concurrent publishes"
//
// # Catalog Errors (CAT001-CAT099)
//
//	CAT001 - Dataset not found
//	         Patterns: "dataset not found"
//	CAT002 - Datasets could not be loaded
//	         Patterns: "catalog read failed"
//
// # Auth Errors (AUTH001-AUTH099)
//
//	AUTH001 - Not signed in
//	          Patterns: "not authenticated"
//	AUTH002 - Publisher role required
//	          Patterns: "forbidden"
//
// # Request Errors (UPL004-UPL005)
//
//	UPL004 - Request cancelled
//	         Patterns: "context canceled"
//	UPL005 - Request timed out
//	         Patterns: "context deadline exceeded"
//
// ERR000 is the fallback. When a user reports it, check the application
// logs for the technical error.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user
// messages. The first match wins. Wrapping errors that embed store error
// text come first so the store's wording cannot shadow them.
var errorPatterns = []errorPattern{
	// Publish failures that wrap store errors.
	{
		pattern: "catalog write failed",
		msg: UserMessage{
			Message: "The dataset could not be created. Nothing was published",
			Action:  "Please try publishing again",
			Code:    "PUB001",
		},
	},
	{
		pattern: "chunk commit failed",
		msg: UserMessage{
			Message: "Publishing stopped part way. Some rows were saved",
			Action:  "Publish again to create a complete copy of the dataset",
			Code:    "PUB002",
		},
	},
	{
		pattern: "catalog read failed",
		msg: UserMessage{
			Message: "Datasets could not be loaded",
			Action:  "Please try again in a few moments",
			Code:    "CAT002",
		},
	},

	// Auth.
	{
		pattern: "not authenticated",
		msg: UserMessage{
			Message: "You are not signed in",
			Action:  "Sign in and try again",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "forbidden",
		msg: UserMessage{
			Message: "Only publishers can upload and publish datasets",
			Action:  "Ask an administrator for publisher access",
			Code:    "AUTH002",
		},
	},

	// Files.
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "Unsupported file type",
			Action:  "Upload a .csv, .xlsx or .xls file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "malformed input",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Check the file is a valid spreadsheet and try again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "no records to publish",
		msg: UserMessage{
			Message: "The file has no data rows",
			Action:  "Upload a file with a header row and at least one data row",
			Code:    "FILE005",
		},
	},

	// Workflow.
	{
		pattern: "publish already in progress",
		msg: UserMessage{
			Message: "A publish is already running",
			Action:  "Wait for it to finish before starting another",
			Code:    "PUB003",
		},
	},
	{
		pattern: "invalid workflow transition",
		msg: UserMessage{
			Message: "That step is not available right now",
			Action:  "Upload a file first, or refresh the page",
			Code:    "PUB004",
		},
	},
	{
		pattern: "too many concurrent publishes",
		msg: UserMessage{
			Message: "The system is busy publishing other datasets",
			Action:  "Please wait a moment and try again",
			Code:    "PUB005",
		},
	},

	// Catalog.
	{
		pattern: "dataset not found",
		msg: UserMessage{
			Message: "Dataset not found",
			Action:  "Pick a dataset from the list",
			Code:    "CAT001",
		},
	},

	// Request lifecycle.
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. It returns
// the first pattern match, or a generic ERR000 message.
//
// Example:
//
//	msg := MapError(ErrDatasetNotFound)
//	// msg.Code == "CAT001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
