package entities

import "time"

// ArbitraryData is a small key/value record for process state such as scraper cursors.
type ArbitraryData struct {
	ID        string `gorm:"primaryKey"`
	Value     []byte
	UpdatedAt time.Time
}
