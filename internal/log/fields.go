// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldRunID     = "run_id"
	FieldUserID    = "user_id"
	FieldChannelID = "channel_id"
	FieldMessageID = "message_id"
	FieldGuildID   = "guild_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOperation = "operation"

	// Path fields
	FieldPath = "path"
)
