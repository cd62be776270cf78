package persist

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vovakirdan/relaychat/internal/core"
)

// isoTime is a time.Time stored as ISO-8601 text with millisecond precision.
type isoTime time.Time

func (t isoTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(core.TimestampLayout))
}

func (t *isoTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	*t = isoTime(parsed.UTC())
	return nil
}

type reactionRecord struct {
	Emoji     string   `json:"emoji"`
	UserID    string   `json:"userId"`
	Timestamp *isoTime `json:"timestamp,omitempty"`
}

type messageRecord struct {
	ID        string           `json:"id"`
	Text      string           `json:"text"`
	Sender    core.Sender      `json:"sender"`
	Timestamp isoTime          `json:"timestamp"`
	Read      *bool            `json:"read,omitempty"`
	Reactions []reactionRecord `json:"reactions,omitempty"`
	ImageURL  string           `json:"imageUrl,omitempty"`
	FileURL   string           `json:"fileUrl,omitempty"`
}

func encodeMessages(msgs []core.Message) ([]byte, error) {
	records := make([]messageRecord, 0, len(msgs))
	for _, msg := range msgs {
		records = append(records, toRecord(msg))
	}
	return json.Marshal(records)
}

func decodeMessages(data []byte) ([]core.Message, error) {
	var records []messageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	msgs := make([]core.Message, 0, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return nil, fmt.Errorf("message %d has no id", i)
		}
		if !rec.Sender.Valid() {
			return nil, fmt.Errorf("message %s has unknown sender %q", rec.ID, rec.Sender)
		}
		msgs = append(msgs, fromRecord(rec))
	}
	return msgs, nil
}

func toRecord(msg core.Message) messageRecord {
	rec := messageRecord{
		ID:        msg.ID,
		Text:      msg.Text,
		Sender:    msg.Sender,
		Timestamp: isoTime(msg.Timestamp),
		Read:      msg.Read,
		ImageURL:  msg.ImageURL,
		FileURL:   msg.FileURL,
	}
	for _, r := range msg.Reactions {
		rr := reactionRecord{Emoji: r.Emoji, UserID: r.UserID}
		if !r.Timestamp.IsZero() {
			ts := isoTime(r.Timestamp)
			rr.Timestamp = &ts
		}
		rec.Reactions = append(rec.Reactions, rr)
	}
	return rec
}

func fromRecord(rec messageRecord) core.Message {
	msg := core.Message{
		ID:        rec.ID,
		Text:      rec.Text,
		Sender:    rec.Sender,
		Timestamp: time.Time(rec.Timestamp),
		Read:      rec.Read,
		ImageURL:  rec.ImageURL,
		FileURL:   rec.FileURL,
	}
	for _, rr := range rec.Reactions {
		r := core.Reaction{Emoji: rr.Emoji, UserID: rr.UserID}
		if rr.Timestamp != nil {
			r.Timestamp = time.Time(*rr.Timestamp)
		}
		msg.Reactions = append(msg.Reactions, r)
	}
	return msg
}
