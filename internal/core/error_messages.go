package core

// error_messages.go maps pipeline errors to user-friendly messages with codes
// for support reference.
//
// Error codes are grouped by category:
//
// # Catalog Errors (CAT001-CAT099)
//
//	CAT001 - No matching resource: Nothing published for the requested month
//	         Action: Check the period; the month may not be published yet
//
//	CAT002 - Catalog unavailable: The dataset catalog failed or refused the query
//	         Action: Please try again later
//
// # Download Errors (DL001-DL099)
//
//	DL001 - Download failed: A resource could not be fetched
//	        Action: Please try again later
//
// # Extraction Errors (EXT001-EXT099)
//
//	EXT001 - Extraction failed: No extractor could unpack the archive
//	         Action: Install unar, unrar or 7-Zip, or retry the download
//
// # Data Errors (DATA001-DATA099)
//
//	DATA001 - No data: Downloads produced no .txt/.csv/.xlsx file
//	          Action: The published resources may have changed format
//
//	DATA002 - Serialization failed: A record could not be written as JSON
//	          Action: Report the period to support
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - System busy: Too many imports in progress
//	         Action: Please wait a moment and try again
//
//	RUN002 - Invalid period: Month must be 1..12
//	         Action: Correct the year and month
//
//	RUN003 - Persistence failed: Records could not be stored in the database
//	         Action: Check DATABASE_URL and database availability
//
//	RUN004 - Cancelled: The run was cancelled or timed out
//	         Action: Please try again
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// Sentinels are matched with errors.Is, in order; the first match wins.

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/comexcl/internal/archive"
	"github.com/JonMunkholm/comexcl/internal/catalog"
	"github.com/JonMunkholm/comexcl/internal/download"
	"github.com/JonMunkholm/comexcl/internal/sink"
	"github.com/JonMunkholm/comexcl/internal/store"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorKind struct {
	target error
	msg    UserMessage
}

var errorKinds = []errorKind{
	{catalog.ErrNoMatchingResource, UserMessage{
		Message: "No published resource matches the requested month",
		Action:  "Check the period; the month may not be published yet",
		Code:    "CAT001",
	}},
	{catalog.ErrUpstream, UserMessage{
		Message: "The dataset catalog is unavailable",
		Action:  "Please try again later",
		Code:    "CAT002",
	}},
	{download.ErrDownload, UserMessage{
		Message: "A resource could not be downloaded",
		Action:  "Please try again later",
		Code:    "DL001",
	}},
	{archive.ErrExtraction, UserMessage{
		Message: "The archive could not be extracted",
		Action:  "Install unar, unrar or 7-Zip, or retry the download",
		Code:    "EXT001",
	}},
	{ErrNoDataFound, UserMessage{
		Message: "No data file was found in the downloaded resources",
		Action:  "The published resources may have changed format",
		Code:    "DATA001",
	}},
	{sink.ErrSerialization, UserMessage{
		Message: "A record could not be written as JSON",
		Action:  "Report the period to support",
		Code:    "DATA002",
	}},
	{ErrTooManyRuns, UserMessage{
		Message: "Too many imports in progress",
		Action:  "Please wait a moment and try again",
		Code:    "RUN001",
	}},
	{ErrInvalidPeriod, UserMessage{
		Message: "Invalid period",
		Action:  "Month must be 1..12",
		Code:    "RUN002",
	}},
	{ErrPersistenceDisabled, UserMessage{
		Message: "Persistence is not configured",
		Action:  "Set DATABASE_URL or run without persistence",
		Code:    "RUN003",
	}},
	{store.ErrPersist, UserMessage{
		Message: "Records could not be stored in the database",
		Action:  "Check DATABASE_URL and database availability",
		Code:    "RUN003",
	}},
	{context.Canceled, UserMessage{
		Message: "The import was cancelled",
		Action:  "Please try again",
		Code:    "RUN004",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "The import timed out",
		Action:  "Please try again",
		Code:    "RUN004",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for nil errors.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.msg
		}
	}

	return defaultMessage
}

// FormatUserError returns a formatted user-friendly error string.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than the
// default.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
