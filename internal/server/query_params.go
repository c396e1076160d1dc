package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const dateOnlyLayout = "2006-01-02"

// Every helper returns a ValidationErrors naming the parameter, so handlers
// can hand the error straight to AbortWithError. Absent values come back nil.

func queryBool(c *gin.Context, name string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, newValidationError(name, "invalid_"+name, "invalid "+name)
	}
	return &parsed, nil
}

func queryPositiveInt(c *gin.Context, name string) (*int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return nil, newValidationError(name, "invalid_"+name, name+" must be a positive integer")
	}
	return &parsed, nil
}

// pathID parses a required snowflake path parameter. Zero is never a valid id.
func pathID(c *gin.Context, name string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || parsed <= 0 {
		return 0, newValidationError(name, "invalid_"+name, "invalid "+strings.ReplaceAll(name, "_", " "))
	}
	return parsed, nil
}

// queryInstant accepts RFC 3339 or a bare date, which means midnight UTC.
func queryInstant(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		parsed = parsed.UTC()
		return &parsed, nil
	}
	if parsed, err := time.ParseInLocation(dateOnlyLayout, raw, time.UTC); err == nil {
		return &parsed, nil
	}
	return nil, newValidationError(name, "invalid_"+name, "invalid "+name)
}
