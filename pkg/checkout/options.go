package checkout

// Options is the object handed to the checkout UI.
type Options struct {
	Key            string            `json:"key"`
	SubscriptionID string            `json:"subscription_id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Prefill        Prefill           `json:"prefill"`
	Theme          Theme             `json:"theme"`
	Notes          map[string]string `json:"notes"`
	CallbackURL    string            `json:"callback_url,omitempty"`
}

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type Theme struct {
	Color string `json:"color"`
}

// SubscriptionParams carries loosely filled user fields; any of them may be empty.
type SubscriptionParams struct {
	Key            string
	SubscriptionID string
	DisplayName    string
	Description    string
	UserName       string
	UserEmail      string
	UserMobile     string
	UserID         string
	PlanID         string
	ThemeColor     string
}

func BuildSubscriptionOptions(p SubscriptionParams) Options {
	return Options{
		Key:            p.Key,
		SubscriptionID: p.SubscriptionID,
		Name:           p.DisplayName,
		Description:    p.Description,
		Prefill: Prefill{
			Name:    p.UserName,
			Email:   p.UserEmail,
			Contact: p.UserMobile,
		},
		Theme: Theme{Color: p.ThemeColor},
		Notes: map[string]string{
			"user_id": p.UserID,
			"plan_id": p.PlanID,
		},
	}
}
