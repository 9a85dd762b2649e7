package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/finnianb/roomcast/internal/models"
	"github.com/finnianb/roomcast/internal/store"
)

// MeetingHandlers serves the meeting lifecycle API. The client base URL
// is what meeting links are minted against.
type MeetingHandlers struct {
	ClientBaseURL string
}

// newMeetingID returns a short, URL-friendly id. The first segment of a
// UUID is enough entropy for a meeting link and much easier to read out.
func newMeetingID() string {
	return strings.SplitN(uuid.New().String(), "-", 2)[0]
}

func (h *MeetingHandlers) meetingLink(c *gin.Context, meetingID string) string {
	base := h.ClientBaseURL
	if origin := c.GetHeader("Origin"); origin != "" {
		base = origin
	}
	return strings.TrimRight(base, "/") + "/meet/" + meetingID
}

// CreateMeeting mints an instant meeting link. The room itself is created
// lazily when the first participant joins over WebSocket.
func (h *MeetingHandlers) CreateMeeting(c *gin.Context) {
	meetingID := newMeetingID()

	if err := store.MarkInstant(meetingID); err != nil {
		log.Printf("Failed to store instant meeting: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create meeting"})
		return
	}

	log.Printf("Instant meeting created: %s", meetingID)
	c.JSON(http.StatusCreated, models.CreateMeetingResponse{
		MeetingID: meetingID,
		Link:      h.meetingLink(c, meetingID),
	})
}

// ValidateMeeting reports whether a meeting link is known, so the client
// can reject dead links before opening a WebSocket.
func (h *MeetingHandlers) ValidateMeeting(c *gin.Context) {
	meetingID := c.Param("meetingId")

	ok, err := store.IsValidMeeting(meetingID)
	if err != nil {
		log.Printf("Failed to validate meeting %s: %v", meetingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate meeting"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"valid": false, "error": "Meeting not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "meetingId": meetingID})
}

// ScheduleMeeting creates a meeting for a future time.
func (h *MeetingHandlers) ScheduleMeeting(c *gin.Context) {
	var req models.ScheduleMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scheduledTime, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduledTime must be RFC 3339"})
		return
	}
	if !scheduledTime.After(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduledTime must be in the future"})
		return
	}

	meetingID := newMeetingID()
	meeting := &models.ScheduledMeeting{
		ID:            meetingID,
		Title:         req.Title,
		Description:   req.Description,
		ScheduledTime: scheduledTime,
		HostEmail:     req.HostEmail,
		HostName:      req.HostName,
		MeetingLink:   h.meetingLink(c, meetingID),
		Status:        models.StatusScheduled,
		CreatedAt:     time.Now(),
	}

	if err := store.SaveScheduled(meeting); err != nil {
		log.Printf("Failed to store scheduled meeting: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule meeting"})
		return
	}

	log.Printf("Meeting scheduled: %s at %s by %s", meetingID, scheduledTime.Format(time.RFC3339), req.HostEmail)
	c.JSON(http.StatusCreated, meeting)
}

// GetScheduledMeeting returns one scheduled meeting.
func (h *MeetingHandlers) GetScheduledMeeting(c *gin.Context) {
	meeting, err := store.GetScheduled(c.Param("meetingId"))
	if err == store.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meeting not found"})
		return
	}
	if err != nil {
		log.Printf("Failed to load meeting: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load meeting"})
		return
	}
	c.JSON(http.StatusOK, meeting)
}

// ListScheduledMeetings returns every meeting scheduled by a host.
func (h *MeetingHandlers) ListScheduledMeetings(c *gin.Context) {
	meetings, err := store.ListByHost(c.Param("hostEmail"))
	if err != nil {
		log.Printf("Failed to list meetings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list meetings"})
		return
	}
	c.JSON(http.StatusOK, meetings)
}

// UpdateScheduledMeeting patches title, description, host name or start
// time. Moving the start time re-arms the reminder.
func (h *MeetingHandlers) UpdateScheduledMeeting(c *gin.Context) {
	meeting, err := store.GetScheduled(c.Param("meetingId"))
	if err == store.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meeting not found"})
		return
	}
	if err != nil {
		log.Printf("Failed to load meeting: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load meeting"})
		return
	}

	var req models.UpdateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Title != "" {
		meeting.Title = req.Title
	}
	if req.Description != nil {
		meeting.Description = *req.Description
	}
	if req.HostName != "" {
		meeting.HostName = req.HostName
	}
	if req.ScheduledTime != "" {
		scheduledTime, err := time.Parse(time.RFC3339, req.ScheduledTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scheduledTime must be RFC 3339"})
			return
		}
		if !scheduledTime.After(time.Now()) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scheduledTime must be in the future"})
			return
		}
		meeting.ScheduledTime = scheduledTime
		meeting.ReminderSent = false
	}

	if err := store.SaveScheduled(meeting); err != nil {
		log.Printf("Failed to update meeting: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update meeting"})
		return
	}
	c.JSON(http.StatusOK, meeting)
}

// DeleteScheduledMeeting cancels a scheduled meeting.
func (h *MeetingHandlers) DeleteScheduledMeeting(c *gin.Context) {
	meetingID := c.Param("meetingId")

	err := store.DeleteScheduled(meetingID)
	if err == store.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meeting not found"})
		return
	}
	if err != nil {
		log.Printf("Failed to delete meeting: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete meeting"})
		return
	}

	log.Printf("Meeting deleted: %s", meetingID)
	c.JSON(http.StatusOK, gin.H{"message": "Meeting deleted"})
}
