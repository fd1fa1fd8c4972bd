package history

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one terminal write outcome.
type Entry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  string    `gorm:"index" json:"requestId"`
	Kind       string    `gorm:"index;not null" json:"kind"`
	Asset      string    `gorm:"not null" json:"asset"`
	AssetAddr  string    `json:"assetAddress"`
	Amount     string    `gorm:"not null" json:"amount"`
	TxHash     string    `gorm:"index" json:"txHash,omitempty"`
	Phase      string    `gorm:"not null" json:"phase"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `gorm:"index" json:"finishedAt"`
}

func (Entry) TableName() string { return "write_history" }
