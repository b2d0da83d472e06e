package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoTask is returned by Fetch when nothing arrived within the timeout.
var ErrNoTask = errors.New("no task available")

type DeliveryFlag string

const (
	FlagVacancy DeliveryFlag = "vacancy"
	FlagMessage DeliveryFlag = "message"
)

type Task struct {
	RecipientID  int64        `json:"recipient_id"`
	PayloadText  string       `json:"payload_text"`
	PhotoRef     string       `json:"payload_photo_ref,omitempty"`
	DeliveryFlag DeliveryFlag `json:"delivery_flag"`
	VacancyRef   *uuid.UUID   `json:"vacancy_ref,omitempty"`
	RetryCount   int          `json:"retry_count"`
}

func NewVacancyTask(recipientID int64, vacancyID uuid.UUID, text string) Task {
	return Task{
		RecipientID:  recipientID,
		PayloadText:  text,
		DeliveryFlag: FlagVacancy,
		VacancyRef:   &vacancyID,
	}
}

func NewMessageTask(recipientID int64, text string) Task {
	return Task{
		RecipientID:  recipientID,
		PayloadText:  text,
		DeliveryFlag: FlagMessage,
	}
}

func (t Task) IsVacancy() bool {
	return t.DeliveryFlag == FlagVacancy && t.VacancyRef != nil
}

func (t Task) Validate() error {
	if t.RecipientID == 0 {
		return errors.New("recipient_id is required")
	}
	if t.PayloadText == "" && t.PhotoRef == "" {
		return errors.New("task has no payload")
	}
	if t.DeliveryFlag != FlagVacancy && t.DeliveryFlag != FlagMessage {
		return fmt.Errorf("unknown delivery flag %q", t.DeliveryFlag)
	}
	return nil
}

func Encode(t Task) ([]byte, error) {
	return json.Marshal(t)
}

func Decode(data []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	return t, t.Validate()
}

type Publisher interface {
	Publish(ctx context.Context, task Task) error
}

type Consumer interface {
	Fetch(ctx context.Context, timeout time.Duration) (*Delivery, error)
}

// Delivery is a fetched task that must be acknowledged or negatively acknowledged exactly once.
type Delivery struct {
	Task Task
	ID   string

	ack  func(ctx context.Context) error
	nack func(ctx context.Context) error
}

func (d *Delivery) Ack(ctx context.Context) error {
	return d.ack(ctx)
}

// Nack hands the task back to the broker for redelivery.
func (d *Delivery) Nack(ctx context.Context) error {
	return d.nack(ctx)
}
