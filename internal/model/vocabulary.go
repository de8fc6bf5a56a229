package model

import (
	"time"
)

// Deck is a user vocabulary deck. LessonID, when set, ties the deck to a
// roadmap vocabulary task.
type Deck struct {
	BaseModel
	UserID      uint   `gorm:"index;not null" json:"userId"`
	Name        string `gorm:"size:200;not null" json:"name"`
	Description string `gorm:"size:500" json:"description"`
	LessonID    string `gorm:"size:100;index" json:"lessonId"`
	Public      bool   `gorm:"default:false" json:"public"`
	Ready       bool   `gorm:"default:false" json:"ready"` // word generation is a background task
}

func (Deck) TableName() string {
	return "decks"
}

// VocabWord carries SM-2 scheduling state alongside the dictionary data.
type VocabWord struct {
	BaseModel
	DeckID          uint      `gorm:"index;not null" json:"deckId"`
	UserID          uint      `gorm:"index;not null" json:"userId"`
	Word            string    `gorm:"size:100;not null" json:"word"`
	Type            string    `gorm:"size:50" json:"type"`
	Definition      string    `gorm:"size:1000" json:"definition"`
	Pronunciation   string    `gorm:"size:100" json:"pronunciation"`
	ContextSentence string    `gorm:"size:1000" json:"contextSentence"`
	AudioURL        string    `gorm:"size:500" json:"audioUrl"`
	IntervalDays    int       `gorm:"default:1" json:"intervalDays"`
	EaseFactor      float64   `gorm:"default:2.5" json:"easeFactor"`
	NextReview      time.Time `gorm:"index" json:"nextReview"`
	Mastered        bool      `gorm:"default:false" json:"mastered"`
}

func (VocabWord) TableName() string {
	return "vocab_words"
}

// WordSuggestion queues words the learner missed in quizzes or that the AI
// spotted in conversation transcripts, pending acceptance into a deck.
type WordSuggestion struct {
	BaseModel
	UserID          uint   `gorm:"index;not null" json:"userId"`
	Word            string `gorm:"size:100;not null" json:"word"`
	Type            string `gorm:"size:50" json:"type"`
	Definition      string `gorm:"size:1000" json:"definition"`
	Pronunciation   string `gorm:"size:100" json:"pronunciation"`
	ContextSentence string `gorm:"size:1000" json:"contextSentence"`
	AudioURL        string `gorm:"size:500" json:"audioUrl"`
}

func (WordSuggestion) TableName() string {
	return "word_suggestions"
}
