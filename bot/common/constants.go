package common

// Discord color constants
const (
	ColorSuccess = 0x57F287 // Green
	ColorWarning = 0xFEE75C // Yellow
)

// Discord limits that shape cleanup and replies
const (
	MaxFetchMessages = 100
	MaxBulkDelete    = 100
	MinBulkDelete    = 2
	MaxMessageLength = 2000
)
