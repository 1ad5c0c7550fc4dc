package session

import "fmt"

// Response is everything a front end needs to show the result of a call.
type Response struct {
	Text     string `json:"text"`
	IsError  bool   `json:"is_error"`
	IsActive bool   `json:"is_active"`
}

func (s *Session) reply(text string) Response {
	return Response{Text: text, IsActive: s.active}
}

func (s *Session) replyErr(err error) Response {
	return Response{Text: err.Error(), IsError: true, IsActive: s.active}
}

// SaveError reports a command whose change was applied in memory but could
// not be written to the save file. The next successful save writes it out.
type SaveError struct {
	Applied string
	Err     error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("%s\nWarning: this change is not saved yet: %v", e.Applied, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
