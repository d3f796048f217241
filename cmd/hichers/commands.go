package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hichers/hichers/internal/dashboard"
	"github.com/hichers/hichers/internal/model"
	"github.com/hichers/hichers/internal/offers"
	"github.com/hichers/hichers/internal/schemes"
)

// ---------------------------------------------------------------------------
// hichers login / verify / logout / whoami
// ---------------------------------------------------------------------------

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: hichers login <country-code> <phone>")
	}
	ch, err := a.auth.RequestCode(ctx, a.store, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	msg := ch.Message
	if msg == "" {
		msg = "Verification code sent."
	}
	fmt.Println(msg)
	if ch.OTP != "" {
		fmt.Printf("Test environment code: %s\n", ch.OTP)
	}
	fmt.Println("Run 'hichers verify <code>' to finish signing in.")
	return nil
}

func (a *app) cmdVerify(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: hichers verify <code>")
	}
	sess, err := a.auth.Verify(ctx, a.store, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (user %d).\n", businessName(sess.Business), sess.UserID)
	return nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	if err := a.auth.Logout(ctx, a.store); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	sess, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	if !sess.Authenticated() {
		fmt.Println("Not signed in.")
		return nil
	}
	b := sess.Business
	fmt.Printf("Business:  %s\n", businessName(b))
	fmt.Printf("Phone:     %s %s\n", b.CountryCode, b.Phone)
	fmt.Printf("User ID:   %d\n", sess.UserID)
	fmt.Printf("Session:   %s\n", a.store.Path())
	return nil
}

func businessName(b model.BusinessProfile) string {
	if b.Name == "" {
		return "your business"
	}
	return b.Name
}

// ---------------------------------------------------------------------------
// hichers offers
// ---------------------------------------------------------------------------

func (a *app) cmdOffers(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	switch sub {
	case "list":
		return a.listOffers(ctx)
	case "create":
		d, err := parseOfferFlags("create", args, a.offers.Location())
		if err != nil {
			return err
		}
		o, err := a.offers.Create(ctx, d)
		if err != nil {
			return err
		}
		fmt.Printf("Created %q (%s, %s to %s).\n", o.Title, o.Label, when(o.ValidFrom), when(o.ValidUntil))
		return nil
	case "update":
		if len(args) < 1 {
			return fmt.Errorf("usage: hichers offers update <id> [flags]")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		d, err := parseOfferFlags("update", args[1:], a.offers.Location())
		if err != nil {
			return err
		}
		o, err := a.offers.Update(ctx, id, d)
		if err != nil {
			return err
		}
		fmt.Printf("Updated offer %d (%s).\n", o.ID, o.Label)
		return nil
	case "view":
		if len(args) != 2 {
			return fmt.Errorf("usage: hichers offers view <id> <map-id>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		mapID, err := parseID(args[1])
		if err != nil {
			return err
		}
		detail, err := a.offers.View(ctx, id, mapID)
		if err != nil {
			return err
		}
		printOfferDetail(detail)
		return nil
	case "end":
		if len(args) != 1 {
			return fmt.Errorf("usage: hichers offers end <id>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		o, err := a.offers.EndEarly(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Offer %d ended at %s.\n", o.ID, when(o.ValidUntil))
		return nil
	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("usage: hichers offers delete <id>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := a.offers.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Offer %d deleted.\n", id)
		return nil
	default:
		return fmt.Errorf("unknown offers command %q", sub)
	}
}

func (a *app) listOffers(ctx context.Context) error {
	c := a.offers.List(ctx)
	if c.Unavailable {
		return fmt.Errorf("offers are unavailable right now, try again later")
	}
	printOfferGroup("Running", c.Present)
	printOfferGroup("Upcoming", c.Future)
	printOfferGroup("Finished", c.Past)
	if c.Defaulted > 0 {
		fmt.Printf("%d offer(s) had no readable status and are shown as running.\n", c.Defaulted)
	}
	return nil
}

func printOfferGroup(title string, list []model.Offer) {
	fmt.Printf("%s (%d)\n", title, len(list))
	for _, o := range list {
		fmt.Printf("  %-6d %-28s %-14s %s → %s  map %d  redeemed %d\n",
			o.ID, o.Title, o.Label, when(o.ValidFrom), when(o.ValidUntil), o.MapID, o.RedemptionCount)
	}
	fmt.Println()
}

func printOfferDetail(d model.OfferDetail) {
	fmt.Printf("%s  (#%d, %s)\n", d.Title, d.ID, d.Label)
	if d.Description != "" {
		fmt.Printf("  %s\n", d.Description)
	}
	fmt.Printf("  Runs:        %s → %s (%s)\n", when(d.ValidFrom), when(d.ValidUntil), statusName(d.TimeStatus))
	fmt.Printf("  Views:       %d\n", d.Stats.Views)
	fmt.Printf("  Redemptions: %d\n", d.Stats.Redemptions)
	fmt.Printf("  Customers:   %d\n", d.Stats.Customers)
}

func statusName(s model.TimeStatus) string {
	switch s {
	case model.StatusPast:
		return "finished"
	case model.StatusFuture:
		return "upcoming"
	default:
		return "running"
	}
}

func when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02 Jan 2006 15:04")
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

var offerTypeNames = map[string]model.OfferType{
	"bogo":          model.OfferBOGO,
	"percentage":    model.OfferPercentage,
	"cash":          model.OfferCash,
	"minimum_spend": model.OfferMinimumSpend,
	"multi_buy":     model.OfferMultiBuy,
	"flash_sale":    model.OfferFlashSale,
}

// parseOfferType accepts a type name ("multi_buy", "multi-buy") or its
// number.
func parseOfferType(s string) (model.OfferType, error) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if t, ok := offerTypeNames[s]; ok {
		return t, nil
	}
	if n, err := strconv.Atoi(s); err == nil && model.OfferType(n).Valid() {
		return model.OfferType(n), nil
	}
	return 0, fmt.Errorf("unknown offer type %q (bogo, percentage, cash, minimum_spend, multi_buy, flash_sale)", s)
}

// parseLocal reads "2006-01-02 15:04" (or with a T) in loc.
func parseLocal(field, s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, model.Invalid(field, "use the form 2006-01-02 15:04")
}

func parseMoney(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(s), "£"))
	if err != nil {
		return decimal.Zero, model.Invalid(field, "%s must be an amount such as 4.50", field)
	}
	return d, nil
}

// parseOfferFlags builds a Draft from create/update flags. Validation of the
// values is left to the offers package.
func parseOfferFlags(name string, args []string, loc *time.Location) (offers.Draft, error) {
	fs := flag.NewFlagSet("offers "+name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		d                           offers.Draft
		typ, from, until, cash, minSpend string
	)
	fs.StringVar(&d.Title, "title", "", "Offer title")
	fs.StringVar(&d.Description, "description", "", "Offer description")
	fs.StringVar(&typ, "type", "", "bogo|percentage|cash|minimum_spend|multi_buy|flash_sale")
	fs.IntVar(&d.MapID, "map-id", 0, "Offer map id (update only)")
	fs.IntVar(&d.Discount.ItemsBuying, "buy", 0, "Items to buy (bogo, multi_buy)")
	fs.IntVar(&d.Discount.ItemsFree, "free", 0, "Items free (bogo)")
	fs.IntVar(&d.Discount.PercentDiscount, "percent", 0, "Percent off (percentage, flash_sale)")
	fs.StringVar(&cash, "cash", "", "Cash amount (cash, minimum_spend, multi_buy)")
	fs.StringVar(&minSpend, "min-spend", "", "Minimum spend (minimum_spend)")
	fs.StringVar(&from, "from", "", "Start, e.g. \"2025-01-15 12:00\"")
	fs.StringVar(&until, "until", "", "End, e.g. \"2025-01-20 18:00\"")
	if err := fs.Parse(args); err != nil {
		return offers.Draft{}, fmt.Errorf("offers %s: %w", name, err)
	}

	var err error
	if typ != "" {
		if d.OfferTypeID, err = parseOfferType(typ); err != nil {
			return offers.Draft{}, err
		}
	}
	if d.Discount.CashDiscount, err = parseMoney("cash", cash); err != nil {
		return offers.Draft{}, err
	}
	if d.Discount.MinimumSpend, err = parseMoney("min-spend", minSpend); err != nil {
		return offers.Draft{}, err
	}
	if d.ValidFrom, err = parseLocal("from", from, loc); err != nil {
		return offers.Draft{}, err
	}
	if d.ValidUntil, err = parseLocal("until", until, loc); err != nil {
		return offers.Draft{}, err
	}
	return d, nil
}

// ---------------------------------------------------------------------------
// hichers schemes
// ---------------------------------------------------------------------------

func (a *app) cmdSchemes(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	switch sub {
	case "list":
		l := a.schemes.List(ctx)
		if l.Unavailable {
			return fmt.Errorf("schemes are unavailable right now, try again later")
		}
		printSchemes(l.Schemes)
		return nil
	case "create":
		loc, err := a.cfg.Location()
		if err != nil {
			return err
		}
		d, err := parseSchemeFlags(args, loc)
		if err != nil {
			return err
		}
		created, err := a.schemes.CreateWithRetry(ctx, d)
		if err != nil {
			return err
		}
		if created.Renamed {
			fmt.Printf("The name was taken, so the scheme was saved as %q.\n", created.Name)
		} else {
			fmt.Printf("Scheme %q created.\n", created.Name)
		}
		return nil
	default:
		return fmt.Errorf("unknown schemes command %q", sub)
	}
}

func printSchemes(list []model.LoyaltyScheme) {
	if len(list) == 0 {
		fmt.Println("No loyalty schemes yet.")
		return
	}
	fmt.Printf("  %-6s %-24s %-9s %-8s %s\n", "ID", "NAME", "TYPE", "ACTIVE", "MEMBERS")
	fmt.Printf("  %-6s %-24s %-9s %-8s %s\n", "--", "----", "----", "------", "-------")
	for _, s := range list {
		fmt.Printf("  %-6d %-24s %-9s %-8t %d\n", s.ID, s.Name, s.Type, s.IsActive, s.MemberCount)
	}
}

func parseSchemeFlags(args []string, loc *time.Location) (schemes.Draft, error) {
	fs := flag.NewFlagSet("schemes create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		d         schemes.Draft
		typ, from string
	)
	fs.StringVar(&d.Name, "name", "", "Scheme name")
	fs.StringVar(&typ, "type", "", "POINTS|STAMPS|DISCOUNT")
	fs.Float64Var(&d.AmountSpend, "spend", 0, "Amount spent per points award (POINTS)")
	fs.IntVar(&d.PointsCollected, "points", 0, "Points collected per award (POINTS)")
	fs.IntVar(&d.PointsRedeem, "redeem-points", 0, "Points needed to redeem (POINTS)")
	fs.Float64Var(&d.AmountFromPoints, "redeem-value", 0, "Value of a redemption (POINTS)")
	fs.IntVar(&d.RedeemFrequency, "redeem-frequency", 0, "Redemptions allowed per period")
	fs.IntVar(&d.StampsToCollect, "stamps", 0, "Stamps to collect (STAMPS)")
	fs.IntVar(&d.FreeItems, "free-items", 0, "Free items per card (STAMPS)")
	fs.IntVar(&d.MonthsExpire, "expire-months", 0, "Months until rewards expire")
	fs.IntVar(&d.ReturnPolicyDays, "return-days", 0, "Return policy in days")
	fs.StringVar(&from, "from", "", "First valid day, e.g. 2025-02-01")
	if err := fs.Parse(args); err != nil {
		return schemes.Draft{}, fmt.Errorf("schemes create: %w", err)
	}
	d.Type = model.SchemeType(strings.ToUpper(strings.TrimSpace(typ)))
	if from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, loc)
		if err != nil {
			return schemes.Draft{}, model.Invalid("validFromDate", "use the form 2006-01-02")
		}
		d.ValidFromDate = t
	}
	return d, nil
}

// ---------------------------------------------------------------------------
// hichers dashboard
// ---------------------------------------------------------------------------

func (a *app) cmdDashboard(ctx context.Context) error {
	sess, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	if !sess.Authenticated() {
		return fmt.Errorf("not signed in, run 'hichers login <country-code> <phone>'")
	}
	v := dashboard.New(a.schemes, a.offers, a.gw, a.logger).Load(ctx)

	fmt.Printf("%s\n\n", businessName(sess.Business))
	for _, s := range []dashboard.Stat{v.Customers, v.ActivePrograms, v.RewardsGiven, v.LoyaltyValue} {
		fmt.Printf("  %-16s %s\n", s.Label, formatStat(s))
	}
	if v.MetricsUnavailable {
		fmt.Println("\n  Business metrics are unavailable right now.")
	}

	fmt.Println()
	switch {
	case v.OffersUnavailable:
		fmt.Println("Running offers: unavailable")
	default:
		printOfferGroup("Running offers", v.ActiveOffers)
	}
	if v.SchemesUnavailable {
		fmt.Println("Schemes: unavailable")
	} else {
		printSchemes(v.Schemes)
	}
	return nil
}

func formatStat(s dashboard.Stat) string {
	if !s.Available {
		return "-"
	}
	arrow := ""
	switch s.Delta.Direction {
	case dashboard.Up:
		arrow = "▲"
	case dashboard.Down:
		arrow = "▼"
	}
	if arrow == "" {
		return s.Value.String()
	}
	return fmt.Sprintf("%s  %s %.1f%%", s.Value.String(), arrow, s.Delta.Percent)
}
