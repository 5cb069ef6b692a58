package negochat

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/parley-sim/parley/internal/domain"
	"github.com/parley-sim/parley/internal/event"
)

// Templates turns negotiation moves into chat text. Template-based
// generation, no NLU: each move class has a handful of phrasings and one
// is picked at random.
type Templates struct {
	game *domain.GameSpec
}

// NewTemplates binds the generator to a game (for issue display names).
func NewTemplates(game *domain.GameSpec) *Templates {
	return &Templates{game: game}
}

var (
	greetings = []string{
		"Hello! I'm looking forward to finding a deal that works for both of us.",
		"Hi there! Let's see if we can reach an agreement.",
		"Hello! I hope we can work something out together.",
		"Hi! Ready to negotiate?",
	}
	proposeOpening = []string{
		"Let me start with a proposal.",
		"Here's my opening offer.",
		"What do you think about this to start?",
		"How about we begin with this?",
	}
	proposeCounter = []string{
		"How about this instead?",
		"Let me make a counter-offer.",
		"What if we tried this?",
		"Here's what I'm thinking.",
		"Consider this alternative.",
	}
	proposeConcession = []string{
		"I can move a bit on this.",
		"Let me adjust my offer.",
		"I'm willing to give a little.",
		"Here's a revised proposal.",
	}
	acceptOffer = []string{
		"That works for me!",
		"I can agree to that.",
		"Deal!",
		"That's acceptable.",
		"I'm happy with that.",
	}
	acceptPartial = []string{
		"I like the direction, let's finalize the details.",
		"Good progress! Let's sort out the remaining items.",
		"We're getting there! What about the rest?",
	}
	rejectMild = []string{
		"I'll need a bit more than that.",
		"Can you do better on your side?",
		"That's not quite enough for me.",
		"I was hoping for a better deal.",
	}
	rejectStrong = []string{
		"I can't accept that.",
		"That's really not going to work for me.",
		"We're too far apart on that.",
		"I need you to reconsider.",
	}
	wantIssue = []string{
		"I really need the %s.",
		"The %s are important to me.",
		"I'd like to keep the %s.",
	}
	offerIssue = []string{
		"You can have the %s.",
		"I'll give you the %s.",
		"Take the %s if you want.",
	}
	respondHappy = []string{
		"I'm glad you're happy!",
		"Great, let's keep this positive energy!",
		"Nice! :)",
	}
	respondSad = []string{
		"I'm sorry you feel that way.",
		"Let's try to find something that makes us both happy.",
		"Don't worry, we can work this out.",
	}
	respondAngry = []string{
		"Let's stay calm and work through this.",
		"I understand you're frustrated.",
		"Let's focus on finding a solution.",
	}
	respondSurprised = []string{
		"Unexpected, right?",
		"I know, let me explain...",
		"Yes, hear me out!",
	}
	timePressure = []string{
		"We're running low on time.",
		"Clock's ticking...",
		"We should try to wrap this up.",
	}
	timePrompt = []string{
		"Any thoughts on my last offer?",
		"What do you think?",
		"I'm waiting to hear from you.",
	}
	farewellSuccess = []string{
		"Great negotiating with you!",
		"Pleasure doing business!",
		"Thanks for the deal!",
	}
	farewellFail = []string{
		"Maybe next time.",
		"Sorry we couldn't reach an agreement.",
		"Too bad we couldn't work it out.",
	}
)

func pick(options []string) string {
	return options[rand.IntN(len(options))]
}

// Greeting returns an opening pleasantry.
func (t *Templates) Greeting() string { return pick(greetings) }

// OpeningProposal introduces the first offer.
func (t *Templates) OpeningProposal() string { return pick(proposeOpening) }

// CounterProposal introduces a counter-offer.
func (t *Templates) CounterProposal() string { return pick(proposeCounter) }

// ConcessionText introduces a concession.
func (t *Templates) ConcessionText() string { return pick(proposeConcession) }

// AcceptText phrases acceptance; partial acceptance asks to finish the
// remaining items instead of closing.
func (t *Templates) AcceptText(complete bool) string {
	if complete {
		return pick(acceptOffer)
	}
	return pick(acceptPartial)
}

// RejectText phrases rejection, mild or strong.
func (t *Templates) RejectText(strong bool) string {
	if strong {
		return pick(rejectStrong)
	}
	return pick(rejectMild)
}

// WantIssueText states a claim on an issue.
func (t *Templates) WantIssueText(issueName string) string {
	name := strings.ToLower(t.game.DisplayName(issueName, true))
	return fmt.Sprintf(pick(wantIssue), name)
}

// OfferIssueText cedes an issue.
func (t *Templates) OfferIssueText(issueName string) string {
	name := strings.ToLower(t.game.DisplayName(issueName, true))
	return fmt.Sprintf(pick(offerIssue), name)
}

// EmotionResponse replies to an opponent's expression. Unknown
// expressions get the happy response set.
func (t *Templates) EmotionResponse(expr event.Expression) string {
	switch expr {
	case event.ExprSad:
		return pick(respondSad)
	case event.ExprAngry:
		return pick(respondAngry)
	case event.ExprSurprised:
		return pick(respondSurprised)
	default:
		return pick(respondHappy)
	}
}

// TimePressureText nudges toward closing when the clock runs down.
func (t *Templates) TimePressureText() string { return pick(timePressure) }

// PromptText pokes an idle opponent.
func (t *Templates) PromptText() string { return pick(timePrompt) }

// Farewell closes the conversation.
func (t *Templates) Farewell(success bool) string {
	if success {
		return pick(farewellSuccess)
	}
	return pick(farewellFail)
}

// DescribeOffer renders an offer as a sentence: "I get all 4 apples,
// we split the oranges (1 for me, 1 for you) and you get the banana".
// Unset issues are skipped; an offer saying nothing yields a generic
// opener.
func (t *Templates) DescribeOffer(offer *domain.Offer) string {
	var parts []string
	for _, is := range t.game.Issues {
		alloc, ok := offer.Allocation(is.Name)
		if !ok {
			continue
		}
		singular := t.game.DisplayName(is.Name, false)
		plural := strings.ToLower(t.game.DisplayName(is.Name, true))

		switch {
		case alloc.Agent > 0 && alloc.Human == 0:
			if alloc.Agent == 1 {
				parts = append(parts, fmt.Sprintf("I get the %s", singular))
			} else {
				parts = append(parts, fmt.Sprintf("I get all %d %s", alloc.Agent, plural))
			}
		case alloc.Human > 0 && alloc.Agent == 0:
			if alloc.Human == 1 {
				parts = append(parts, fmt.Sprintf("you get the %s", singular))
			} else {
				parts = append(parts, fmt.Sprintf("you get all %d %s", alloc.Human, plural))
			}
		case alloc.Agent > 0 && alloc.Human > 0:
			parts = append(parts, fmt.Sprintf("we split the %s (%d for me, %d for you)", plural, alloc.Agent, alloc.Human))
		}
	}

	switch len(parts) {
	case 0:
		return "Let's discuss the items."
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}
