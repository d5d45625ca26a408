package db

import (
	"strings"
	"time"

	"github.com/tejzpr/checkup-bot/internal/submission"
)

// Request is one persisted submission row. Column names match the
// requests table of earlier deployments so existing databases keep working.
type Request struct {
	ID        string `json:"id" gorm:"primaryKey;type:text"`
	UserID    int64  `json:"user_id" gorm:"column:user_id;index"`
	Username  string `json:"username" gorm:"column:username;type:text"`
	Address   string `json:"address" gorm:"type:text"`
	Cadastral string `json:"cadastral" gorm:"column:cadastral;type:text"`
	Who       string `json:"who" gorm:"column:who;type:text"`
	Comment   string `json:"comment" gorm:"type:text"`
	// Files holds stored attachment names joined by newlines.
	Files     string `json:"files" gorm:"type:text"`
	CreatedAt string `json:"created_at" gorm:"column:created_at;type:text;index;autoCreateTime:false"`
}

func (Request) TableName() string { return "requests" }

func fromSubmission(s submission.Submission) Request {
	return Request{
		ID:        s.ID,
		UserID:    s.UserID,
		Username:  s.DisplayName,
		Address:   s.Address,
		Cadastral: s.CadastralNumber,
		Who:       s.RequesterRole,
		Comment:   s.Comment,
		Files:     strings.Join(s.Attachments, "\n"),
		CreatedAt: s.CreatedAtText(),
	}
}

// Submission converts the row back. A malformed created_at yields the zero
// time rather than failing the whole listing.
func (r Request) Submission() submission.Submission {
	var files []string
	if r.Files != "" {
		files = strings.Split(r.Files, "\n")
	}
	created, _ := time.ParseInLocation(submission.TimeLayout, r.CreatedAt, time.UTC)
	return submission.Submission{
		ID:              r.ID,
		UserID:          r.UserID,
		DisplayName:     r.Username,
		Address:         r.Address,
		CadastralNumber: r.Cadastral,
		RequesterRole:   r.Who,
		Comment:         r.Comment,
		Attachments:     files,
		CreatedAt:       created,
	}
}
