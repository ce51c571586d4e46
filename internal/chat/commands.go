package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/softreply/sophia/internal/payment"
)

// Payments creates checkout links for the /subscribe command. *payment.Client
// satisfies it.
type Payments interface {
	Configured() bool
	CreateOrder(ctx context.Context, userID int64, plan payment.Plan) (string, error)
}

const startText = "Hey there! ❤️ Text me something sweet!\n\n" +
	"You can upgrade to VIP with /subscribe for unlimited messages and special features!"

const paymentsUnavailableText = "Payments aren't set up yet, so enjoy your free messages for now! 💖"

const paymentsFailedText = "I couldn't reach the payment provider. Try again in a bit 💔"

// HandleStart answers the /start command.
func (o *Orchestrator) HandleStart(chatID int64) OutboundReply {
	return OutboundReply{ChatID: chatID, Text: startText}
}

// HandleSubscribe answers the /subscribe command with the plan list and a
// checkout link per plan. The user's ID rides along as the order's custom_id
// so the payment webhook can unlock the right user later.
func (o *Orchestrator) HandleSubscribe(ctx context.Context, userID, chatID int64) OutboundReply {
	plans := payment.DefaultPlans()
	if o.payments == nil || !o.payments.Configured() {
		return OutboundReply{ChatID: chatID, Text: paymentsUnavailableText}
	}

	var b strings.Builder
	b.WriteString("Choose your subscription plan:\n")
	for i, plan := range plans {
		link, err := o.payments.CreateOrder(ctx, userID, plan)
		if err != nil {
			log.Printf("subscribe for user %d: create order for plan %s failed: %v", userID, plan.ID, err)
			return OutboundReply{ChatID: chatID, Text: paymentsFailedText}
		}
		fmt.Fprintf(&b, "\n%d. %s %s - %s\n", i+1, plan.Currency, plan.Price, plan.Label)
		fmt.Fprintf(&b, "   %s\n", strings.Join(plan.Features, ", "))
		fmt.Fprintf(&b, "   Pay here: %s\n", link)
	}
	b.WriteString("\nTap a link to subscribe! 💕")
	return OutboundReply{ChatID: chatID, Text: b.String()}
}
