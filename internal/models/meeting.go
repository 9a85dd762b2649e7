package models

import "time"

// ScheduledMeeting is a meeting created ahead of time through the HTTP API.
// Instant rooms created on first join never get one of these.
type ScheduledMeeting struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	ScheduledTime time.Time  `json:"scheduledTime"`
	HostEmail     string     `json:"hostEmail"`
	HostName      string     `json:"hostName"`
	MeetingLink   string     `json:"meetingLink"`
	Status        RoomStatus `json:"status"`
	ReminderSent  bool       `json:"reminderSent"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// CreateMeetingResponse is returned by POST /create-meet.
type CreateMeetingResponse struct {
	MeetingID string `json:"meetingId"`
	Link      string `json:"link"`
}

// ScheduleMeetingRequest is the body for POST /schedule-meet.
type ScheduleMeetingRequest struct {
	Title         string `json:"title" binding:"required"`
	Description   string `json:"description"`
	ScheduledTime string `json:"scheduledTime" binding:"required"`
	HostEmail     string `json:"hostEmail" binding:"required"`
	HostName      string `json:"hostName"`
}

// UpdateMeetingRequest is the body for PUT /scheduled-meeting/:id.
// Zero-valued fields are left untouched.
type UpdateMeetingRequest struct {
	Title         string  `json:"title"`
	Description   *string `json:"description"`
	ScheduledTime string  `json:"scheduledTime"`
	HostName      string  `json:"hostName"`
}
