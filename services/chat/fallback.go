package chat

import "math/rand"

// busyResponses are the canned replies used when the generation provider is
// rate limiting chat requests. Distinct from the service-unavailable message
// so users know retrying will help.
var busyResponses = []string{
	"I'm handling a lot of questions right now. Please try again in a few seconds.",
	"Things are a bit busy on my end. Give me a moment and ask again.",
	"I couldn't get to your question just now. Please try again shortly.",
}

// Selector picks one of n canned responses. Injectable so tests are
// deterministic while production stays random.
type Selector interface {
	Select(n int) int
}

// RandomSelector picks uniformly at random
type RandomSelector struct{}

// Select returns a random index below n
func (RandomSelector) Select(n int) int {
	return rand.Intn(n)
}
