package main

import (
	"errors"
	"time"

	"github.com/example/scan-attendance/internal/application"
)

type personDTO struct {
	ID         string   `json:"person_id"`
	Name       string   `json:"name"`
	HasToken   bool     `json:"has_token"`
	SessionIDs []string `json:"session_ids"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

type ruleDTO struct {
	Day      string `json:"day"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Location string `json:"location,omitempty"`
}

type sessionDTO struct {
	ID        string    `json:"session_id"`
	Name      string    `json:"session_name"`
	Owner     string    `json:"owner,omitempty"`
	Rules     []ruleDTO `json:"rules"`
	PersonIDs []string  `json:"person_ids"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

type deletedDTO struct {
	ID string `json:"deleted"`
}

type confirmationDTO struct {
	AttendanceID string `json:"attendance_id"`
	PersonID     string `json:"person_id"`
	PersonName   string `json:"name"`
	SessionID    string `json:"session_id"`
	SessionName  string `json:"session_name"`
	Timestamp    string `json:"timestamp"`
	Status       string `json:"status"`
	Mode         string `json:"mode"`
}

type resolutionDTO struct {
	PersonID    string  `json:"person_id"`
	PersonName  string  `json:"name"`
	At          string  `json:"timestamp"`
	Matched     bool    `json:"matched"`
	SessionID   *string `json:"session_id,omitempty"`
	SessionName *string `json:"session_name,omitempty"`
}

type reportEntryDTO struct {
	PersonID   string  `json:"person_id"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	RecordedAt *string `json:"timestamp,omitempty"`
}

type reportDTO struct {
	SessionID   string           `json:"session_id"`
	SessionName string           `json:"session_name"`
	Date        string           `json:"date"`
	Total       int              `json:"total_students"`
	Present     int              `json:"present_students"`
	Absent      int              `json:"absent_students"`
	Entries     []reportEntryDTO `json:"attendance_details"`
}

type sessionSummaryDTO struct {
	SessionID    string `json:"session_id"`
	SessionName  string `json:"session_name"`
	TotalDays    int    `json:"total_days"`
	AttendedDays int    `json:"attended_days"`
	Percentage   int    `json:"attendance_percentage"`
}

type summaryDTO struct {
	PersonID string              `json:"person_id"`
	Name     string              `json:"name"`
	Sessions []sessionSummaryDTO `json:"sessions"`
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Detail    string            `json:"detail,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func toPersonDTO(person application.Person) personDTO {
	sessionIDs := person.EnrolledSessionIDs
	if sessionIDs == nil {
		sessionIDs = []string{}
	}
	return personDTO{
		ID:         person.ID,
		Name:       person.DisplayName,
		HasToken:   person.BiometricToken != nil,
		SessionIDs: sessionIDs,
		CreatedAt:  person.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  person.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toPersonDTOs(persons []application.Person) []personDTO {
	out := make([]personDTO, 0, len(persons))
	for _, person := range persons {
		out = append(out, toPersonDTO(person))
	}
	return out
}

func toSessionDTO(session application.Session) sessionDTO {
	rules := make([]ruleDTO, 0, len(session.Rules))
	for _, rule := range session.Rules {
		rules = append(rules, ruleDTO{Day: rule.Day, Start: rule.Start, End: rule.End, Location: rule.Location})
	}
	personIDs := session.EnrolledPersonIDs
	if personIDs == nil {
		personIDs = []string{}
	}
	return sessionDTO{
		ID:        session.ID,
		Name:      session.Name,
		Owner:     session.Owner,
		Rules:     rules,
		PersonIDs: personIDs,
		CreatedAt: session.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: session.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toConfirmationDTO(c application.Confirmation) confirmationDTO {
	return confirmationDTO{
		AttendanceID: c.Fact.ID,
		PersonID:     c.Fact.PersonID,
		PersonName:   c.PersonName,
		SessionID:    c.Fact.SessionID,
		SessionName:  c.SessionName,
		Timestamp:    application.FormatTimestamp(c.Fact.Timestamp),
		Status:       c.Fact.Status,
		Mode:         string(c.Mode),
	}
}

func toResolutionDTO(r application.Resolution) resolutionDTO {
	out := resolutionDTO{
		PersonID:   r.Person.ID,
		PersonName: r.Person.DisplayName,
		At:         application.FormatTimestamp(r.At),
	}
	if r.Session != nil {
		id, name := r.Session.ID, r.Session.Name
		out.Matched = true
		out.SessionID = &id
		out.SessionName = &name
	}
	return out
}

func toReportDTO(report application.Report) reportDTO {
	entries := make([]reportEntryDTO, 0, len(report.Entries))
	for _, entry := range report.Entries {
		dto := reportEntryDTO{PersonID: entry.PersonID, Name: entry.DisplayName, Status: entry.Status}
		if entry.RecordedAt != nil {
			recordedAt := application.FormatTimestamp(*entry.RecordedAt)
			dto.RecordedAt = &recordedAt
		}
		entries = append(entries, dto)
	}
	return reportDTO{
		SessionID:   report.SessionID,
		SessionName: report.SessionName,
		Date:        report.Date,
		Total:       report.Total,
		Present:     report.Present,
		Absent:      report.Absent,
		Entries:     entries,
	}
}

func toSummaryDTO(summary application.Summary) summaryDTO {
	sessions := make([]sessionSummaryDTO, 0, len(summary.Sessions))
	for _, s := range summary.Sessions {
		sessions = append(sessions, sessionSummaryDTO{
			SessionID:    s.SessionID,
			SessionName:  s.SessionName,
			TotalDays:    s.TotalDays,
			AttendedDays: s.AttendedDays,
			Percentage:   s.Percentage,
		})
	}
	return summaryDTO{PersonID: summary.PersonID, Name: summary.DisplayName, Sessions: sessions}
}

func toErrorResponse(err error) errorResponse {
	kind := application.ErrorKind(err)
	resp := errorResponse{ErrorCode: kind, Message: localizedMessage(kind), Detail: err.Error()}
	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		resp.Errors = vErr.FieldErrors
		resp.Detail = ""
	}
	return resp
}

func localizedMessage(kind string) string {
	switch kind {
	case "person_not_found":
		return "該当する利用者が見つかりません。"
	case "session_not_found":
		return "指定されたセッションは存在しません。"
	case "not_enrolled":
		return "利用者はこのセッションに登録されていません。"
	case "no_matching_session":
		return "現在の時刻に該当するセッションがありません。"
	case "invalid_timestamp":
		return "日時の形式が不正です。"
	case "invalid_recurrence_rule":
		return "繰り返しルールが不正です。"
	case "duplicate_biometric_token":
		return "このトークンは既に別の利用者に割り当てられています。"
	case "already_exists":
		return "同じ ID が既に存在します。"
	case "validation":
		return "入力内容に誤りがあります。"
	case "repository_unavailable":
		return "データストアにアクセスできません。"
	default:
		return "予期しないエラーが発生しました。"
	}
}
