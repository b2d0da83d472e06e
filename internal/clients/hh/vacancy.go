package hh

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type VacancyPreview struct {
	ID          string
	Name        string
	Url         string     `json:"alternate_url"`
	PublishedAt CustomTime `json:"published_at"`
	Employer    struct {
		Name string `json:"name"`
	} `json:"employer"`
	Area struct {
		Name string `json:"name"`
	} `json:"area"`
	Salary  *Salary `json:"salary"`
	Snippet struct {
		Requirement    string `json:"requirement"`
		Responsibility string `json:"responsibility"`
	} `json:"snippet"`
}

type Salary struct {
	From     *int   `json:"from"`
	To       *int   `json:"to"`
	Currency string `json:"currency"`
}

func (s *Salary) String() string {
	if s == nil || (s.From == nil && s.To == nil) {
		return "Не указана"
	}
	bound := func(v *int) string {
		if v == nil {
			return ""
		}
		return fmt.Sprint(*v)
	}
	return strings.TrimSpace(fmt.Sprintf("%s–%s %s", bound(s.From), bound(s.To), s.Currency))
}

// Text renders the vacancy as a chat message.
func (v VacancyPreview) Text() string {
	orDefault := func(s, def string) string {
		if strings.TrimSpace(s) == "" {
			return def
		}
		return s
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📌 %s\n", orDefault(v.Name, "Без названия")))
	sb.WriteString(fmt.Sprintf("🏢 %s\n", orDefault(v.Employer.Name, "Компания не указана")))
	sb.WriteString(fmt.Sprintf("📍 %s\n", orDefault(v.Area.Name, "Регион не указан")))
	sb.WriteString(fmt.Sprintf("💰 Зарплата: %s\n\n", v.Salary.String()))
	sb.WriteString(fmt.Sprintf("🧠 Требования: %s\n", v.Snippet.Requirement))
	sb.WriteString(fmt.Sprintf("💼 Обязанности: %s\n\n", v.Snippet.Responsibility))
	sb.WriteString(fmt.Sprintf("🔗 %s", v.Url))
	return sb.String()
}

type CustomTime struct {
	time.Time
}

func (dt *CustomTime) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}

	t, err := time.Parse("2006-01-02T15:04:05-0700", str)
	if err != nil {
		return fmt.Errorf("parsing time %s: %v", str, err)
	}
	dt.Time = t
	return nil
}
