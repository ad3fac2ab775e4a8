package redis

import "fmt"

const ns = "rwc:v1"

func KeyCompetitionInventory(competitionID int64) string {
	return fmt.Sprintf("%s:competition:%d:inventory", ns, competitionID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelCompetitionsChanged() string {
	return ns + ":competitions:changed"
}
