package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
)

func DecodeJobCursor(cursorStr string) (*domain.JobCursor, error) {
	at, jobID, err := decodeCursor(cursorStr)
	if err != nil || jobID == "" {
		return nil, err
	}
	return &domain.JobCursor{CreatedAt: at, JobID: jobID}, nil
}

func EncodeJobCursor(cursor *domain.JobCursor) string {
	return encodeCursor(cursor.CreatedAt, cursor.JobID)
}

// DecodeDueCursor reads a cursor for listings ordered by due time
func DecodeDueCursor(cursorStr string) (*domain.JobCursor, error) {
	at, jobID, err := decodeCursor(cursorStr)
	if err != nil || jobID == "" {
		return nil, err
	}
	return &domain.JobCursor{Due: at, JobID: jobID}, nil
}

func EncodeDueCursor(cursor *domain.JobCursor) string {
	return encodeCursor(cursor.Due, cursor.JobID)
}

func decodeCursor(cursorStr string) (time.Time, string, error) {
	if cursorStr == "" {
		return time.Time{}, "", nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursorStr)
	if err != nil {
		return time.Time{}, "", err
	}

	at, jobID, ok := strings.Cut(string(decoded), "|")
	if !ok || jobID == "" {
		return time.Time{}, "", fmt.Errorf("invalid cursor format")
	}

	var nanos int64
	if _, err := fmt.Sscanf(at, "%d", &nanos); err != nil {
		return time.Time{}, "", fmt.Errorf("invalid timestamp in cursor: %w", err)
	}
	return time.Unix(0, nanos).UTC(), jobID, nil
}

func encodeCursor(at time.Time, jobID string) string {
	cs := fmt.Sprintf("%d|%s", at.UnixNano(), jobID)
	return base64.URLEncoding.EncodeToString([]byte(cs))
}
