package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuizVariantKey returns the cache key for the variant delivered to one attempt.
func (r *CacheKeyStruct) QuizVariantKey(quizID, sessionID string) string {
	return fmt.Sprintf("quiz:%s:session:%s:variant", quizID, sessionID)
}

// ProctoringSessionKey returns the cache key for a proctoring session snapshot.
func (r *CacheKeyStruct) ProctoringSessionKey(sessionID string) string {
	return fmt.Sprintf("proctoring:session:%s", sessionID)
}

// AssessmentMonitorChannel returns the Redis PubSub channel name for an assessment monitor.
func (r *CacheKeyStruct) AssessmentMonitorChannel(assessmentID string) string {
	return fmt.Sprintf("proctoring:assessment:%s:monitor", assessmentID)
}

var CacheKey = NewCacheKeyStruct()
