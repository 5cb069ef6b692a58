package domain

import "fmt"

// ClassicResourceGame is the stock fruit-division game: opposing
// preferences over apples, oranges and bananas.
func ClassicResourceGame() *GameSpec {
	g, err := NewGameSpec(
		"classic_resource",
		"Divide fruits between two parties. Each party values items differently.",
		[]Issue{
			{Name: "apples", DisplayName: "Apples", Quantity: 4},
			{Name: "oranges", DisplayName: "Oranges", Quantity: 3},
			{Name: "bananas", DisplayName: "Bananas", Quantity: 2},
		},
		map[string]float64{"apples": 10, "oranges": 6, "bananas": 2},
		map[string]float64{"apples": 2, "oranges": 6, "bananas": 10},
		DefaultRules(),
	)
	if err != nil {
		panic(fmt.Sprintf("builtin game: %v", err))
	}
	g.SingularNames["apples"] = "apple"
	g.SingularNames["oranges"] = "orange"
	g.SingularNames["bananas"] = "banana"
	return g
}

// JobNegotiationGame negotiates job offer terms. The employer (agent)
// carries negative per-unit values: every concession costs it.
func JobNegotiationGame() *GameSpec {
	rules := DefaultRules()
	rules.DeadlineSeconds = 600
	g, err := NewGameSpec(
		"job_negotiation",
		"Negotiate job offer terms: salary, vacation, and remote work.",
		[]Issue{
			{Name: "salary", DisplayName: "Salary (10k units)", Quantity: 5},
			{Name: "vacation", DisplayName: "Vacation Days", Quantity: 10},
			{Name: "remote", DisplayName: "Remote Days/Week", Quantity: 5},
		},
		map[string]float64{"salary": -8, "vacation": -3, "remote": -5},
		map[string]float64{"salary": 10, "vacation": 5, "remote": 7},
		rules,
	)
	if err != nil {
		panic(fmt.Sprintf("builtin game: %v", err))
	}
	g.SingularNames["salary"] = "salary unit"
	g.SingularNames["vacation"] = "vacation day"
	g.SingularNames["remote"] = "remote day"
	return g
}

// BuiltinGames lists every game compiled into the binary.
func BuiltinGames() []*GameSpec {
	return []*GameSpec{ClassicResourceGame(), JobNegotiationGame()}
}

// BuiltinGame returns a builtin game by name.
func BuiltinGame(name string) (*GameSpec, bool) {
	for _, g := range BuiltinGames() {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}
