package tasks

import (
	"fmt"
	"strings"
	"time"
)

// MaxContentLen is the column width of my_task.content, in characters.
const MaxContentLen = 100

type Task struct {
	ID       int64     `json:"id"`
	Content  string    `json:"content"`
	Created  time.Time `json:"created"`
	Complete bool      `json:"complete"`
}

func (t Task) String() string {
	return fmt.Sprintf("Task %d", t.ID)
}

// ValidContent reports whether content has at least one non-space character.
func ValidContent(content string) bool {
	return strings.TrimSpace(content) != ""
}
