package payment

// Plan is a purchasable subscription tier.
type Plan struct {
	ID       string
	Label    string
	Price    string // decimal string, as the orders API expects
	Currency string
	Features []string
}

// DefaultPlans returns the subscription tiers offered by /subscribe.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:       "monthly",
			Label:    "Monthly",
			Price:    "9.99",
			Currency: "USD",
			Features: []string{"Unlimited messages", "Priority response", "Custom emojis", "No cooldowns"},
		},
		{
			ID:       "yearly",
			Label:    "Yearly",
			Price:    "99.99",
			Currency: "USD",
			Features: []string{"Everything in Monthly", "20% discount", "Exclusive content", "Priority support"},
		},
	}
}
