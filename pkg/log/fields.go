package log

const (
	// Connection / room
	FieldClientID = "client_id"
	FieldRoomID   = "room_id"
	FieldSubject  = "subject"

	// Relay / persistence
	FieldQueueSubject = "queue_subject"
	FieldTopic        = "topic"
	FieldTimestamp    = "ts"

	// Service
	FieldService = "service"
)
