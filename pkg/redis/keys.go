package redis

import "fmt"

// DetectionSettingsKey returns the key holding a user's detection settings (JSON string)
// Pattern: settings:detection:{user_id}
func DetectionSettingsKey(userID string) string {
	return fmt.Sprintf("settings:detection:%s", userID)
}

// HomeLocationKey returns the key of a user's registered safe-zone center (hash with lat/lon)
// Pattern: home:{user_id}
func HomeLocationKey(userID string) string {
	return fmt.Sprintf("home:%s", userID)
}
