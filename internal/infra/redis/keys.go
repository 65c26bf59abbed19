package redis

const (
	questionsKey      = "quiz:questions"
	answersKey        = "quiz:answers"
	participantsIndex = "quiz:participants"
)

func participantKey(id string) string {
	return "quiz:participant:" + id
}
