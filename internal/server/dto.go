package server

import (
	"encoding/json"

	"taskline/internal/journal"
	"taskline/internal/session"
	"taskline/internal/task"
)

// Request payloads

type InputRequest struct {
	Text string `json:"text" doc:"One line of input, e.g. todo read book"`
}

// Response payloads

type ResponseBody struct {
	Text     string `json:"text"`
	IsError  bool   `json:"is_error"`
	IsActive bool   `json:"is_active"`
}

type TaskResponse struct {
	ID          int    `json:"id"`
	Kind        string `json:"kind" enum:"T,D,E"`
	Done        bool   `json:"done"`
	Description string `json:"description"`
	Time        string `json:"time,omitempty"`
	Text        string `json:"text"`
}

type TaskListResponse struct {
	Items []TaskResponse `json:"items"`
}

type EventResponse struct {
	ID        int64          `json:"id"`
	TS        string         `json:"ts" format:"date-time"`
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	Kind      string         `json:"kind,omitempty"`
	Input     string         `json:"input,omitempty"`
	IsError   bool           `json:"is_error"`
	TaskCount int            `json:"task_count"`
	Payload   map[string]any `json:"payload"`
}

type EventListResponse struct {
	Items []EventResponse `json:"items"`
}

// Conversion helpers

func responseBody(r session.Response) ResponseBody {
	return ResponseBody(r)
}

func taskListResponse(tasks []task.Task) TaskListResponse {
	out := TaskListResponse{Items: make([]TaskResponse, 0, len(tasks))}
	for i, t := range tasks {
		out.Items = append(out.Items, taskResponse(i+1, t))
	}
	return out
}

func taskResponse(id int, t task.Task) TaskResponse {
	return TaskResponse{
		ID:          id,
		Kind:        t.Kind.Tag(),
		Done:        t.Done,
		Description: t.Description,
		Time:        t.Time,
		Text:        t.String(),
	}
}

func eventResponse(e journal.Event) EventResponse {
	payload := map[string]any{}
	if e.Payload != "" {
		_ = json.Unmarshal([]byte(e.Payload), &payload)
	}
	return EventResponse{
		ID:        e.ID,
		TS:        e.TS,
		Type:      e.Type,
		SessionID: e.SessionID,
		Kind:      e.Kind,
		Input:     e.Input,
		IsError:   e.IsError,
		TaskCount: e.TaskCount,
		Payload:   payload,
	}
}
