package kv

import "fmt"

// SessionsKey holds a persona's session list.
func SessionsKey(namespace string) string {
	return fmt.Sprintf("%s:sessions", namespace)
}

// ChatKey holds one session's history log.
func ChatKey(namespace, sessionID string) string {
	return fmt.Sprintf("%s:chat:%s", namespace, sessionID)
}

func MemoriesKey(namespace string) string {
	return fmt.Sprintf("%s:memories", namespace)
}

func MemoryCounterKey(namespace string) string {
	return fmt.Sprintf("%s:memory_counter", namespace)
}

func ProjectFilesKey(namespace string) string {
	return fmt.Sprintf("%s:project_files", namespace)
}

const ReadingsKey = "library:readings"

// ReadingChatKey holds the chat sub-log of one companion about one reading.
func ReadingChatKey(readingID, companion string) string {
	return fmt.Sprintf("library:chat:%s:%s", readingID, companion)
}
