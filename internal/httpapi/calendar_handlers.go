package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"voiceagent-platform/internal/calendar"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListCalendars(c *gin.Context) {
	if h.Calendar == nil {
		notConfigured(c, "calendar")
		return
	}
	list, err := h.Calendar.ListCalendars(c.Request.Context(), c.GetHeader(calendar.TokenHeader))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calendars": list})
}

// ListEvents accepts RFC 3339 from/to bounds. Without from it lists the next
// seven days.
func (h Handlers) ListEvents(c *gin.Context) {
	if h.Calendar == nil {
		notConfigured(c, "calendar")
		return
	}
	p := calendar.ListEventsParams{CalendarID: c.Query("calendarId")}
	fields := map[string]string{}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fields["from"] = "Must be an RFC 3339 timestamp"
		}
		p.From = t
	} else {
		p.From = time.Now().UTC()
		p.To = p.From.Add(7 * 24 * time.Hour)
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fields["to"] = "Must be an RFC 3339 timestamp"
		}
		p.To = t
	}
	if v := c.Query("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			fields["max"] = "Must be a positive number"
		}
		p.MaxResults = n
	}
	if len(fields) > 0 {
		validationFailed(c, fields)
		return
	}

	list, err := h.Calendar.ListEvents(c.Request.Context(), c.GetHeader(calendar.TokenHeader), p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": list})
}

type createEventRequest struct {
	CalendarID string         `json:"calendarId"`
	Event      calendar.Event `json:"event"`
}

func (h Handlers) CreateEvent(c *gin.Context) {
	if h.Calendar == nil {
		notConfigured(c, "calendar")
		return
	}
	var req createEventRequest
	if !bindJSON(c, &req) {
		return
	}
	ev, err := h.Calendar.CreateEvent(c.Request.Context(), c.GetHeader(calendar.TokenHeader), req.CalendarID, req.Event)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}
