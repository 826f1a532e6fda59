package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"aquaflow/internal/lifecycle"
	"aquaflow/internal/models"
	"aquaflow/internal/report"
	"aquaflow/internal/syncer"

	"github.com/shopspring/decimal"
)

type command struct {
	summary string
	auth    bool
	run     func(ctx context.Context, a *app, actor *models.User, args []string) error
}

var commands = map[string]command{
	"register":    {summary: "create a customer account", run: cmdRegister},
	"login":       {summary: "log in and save a session", run: cmdLogin},
	"logout":      {summary: "remove the saved session", run: cmdLogout},
	"whoami":      {summary: "show the logged in account", auth: true, run: cmdWhoami},
	"quote":       {summary: "price a cart without booking", run: cmdQuote},
	"book":        {summary: "place a refill booking", auth: true, run: cmdBook},
	"bookings":    {summary: "list bookings", auth: true, run: cmdBookings},
	"status":      {summary: "move a booking to its next status", auth: true, run: cmdStatus},
	"users":       {summary: "list accounts (admin)", auth: true, run: cmdUsers},
	"role":        {summary: "change an account's role (admin)", auth: true, run: cmdRole},
	"settings":    {summary: "show or edit catalog and time slots", run: cmdSettings},
	"reset":       {summary: "reset a forgotten password", run: cmdReset},
	"report":      {summary: "overview and payments (admin)", auth: true, run: cmdReport},
	"export":      {summary: "export bookings to Excel (admin)", auth: true, run: cmdExport},
	"unconfirmed": {summary: "list writes the store never confirmed", run: cmdUnconfirmed},
}

var errAdminOnly = errors.New("this command is for admins")

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet("aquaflow "+name, flag.ContinueOnError)
}

func cmdRegister(ctx context.Context, a *app, _ *models.User, args []string) error {
	fs := newFlags("register")
	name := fs.String("name", "", "full name")
	mobile := fs.String("mobile", "", "mobile number")
	email := fs.String("email", "", "email (optional)")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, p, err := a.mirror.Register(ctx, syncer.RegisterInput{FullName: *name, Mobile: *mobile, Email: *email, Password: *password})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account %s created for %s.\n", u.ID, u.FullName)
	return a.await(ctx, "Account", p)
}

func cmdLogin(_ context.Context, a *app, _ *models.User, args []string) error {
	fs := newFlags("login")
	id := fs.String("id", "", "mobile number or email")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := a.mirror.Login(*id, *password)
	if err != nil {
		return err
	}
	token, err := a.tokens.Generate(u)
	if err != nil {
		return err
	}
	if err := saveSession(a.cfg.Session.TokenFile, token); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Welcome, %s (%s).\n", u.FullName, u.Type)
	return nil
}

func cmdLogout(_ context.Context, a *app, _ *models.User, _ []string) error {
	if err := os.Remove(a.cfg.Session.TokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func cmdWhoami(_ context.Context, a *app, actor *models.User, _ []string) error {
	fmt.Fprintf(a.out, "%s  %s  %s  %s\n", actor.ID, actor.FullName, actor.Mobile, actor.Type)
	return nil
}

func cmdQuote(_ context.Context, a *app, _ *models.User, args []string) error {
	fs := newFlags("quote")
	items := fs.String("items", "", "cart as TYPE:REFILL:NEW[,TYPE:REFILL:NEW...]")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cart, err := parseItems(*items)
	if err != nil {
		return err
	}

	q := a.mirror.Catalog().Quote(cart)
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tREFILL\tNEW\tSUBTOTAL")
	for _, l := range q.Lines {
		name := l.Item.Name
		if !l.Known {
			name += " (unknown)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", name, l.Item.Refill, l.Item.New, money(l.Refill.Add(l.New)))
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t%s\n", money(q.Total))
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(q.Unknown) > 0 {
		fmt.Fprintf(a.out, "Not in the catalog, cannot be booked: %s\n", strings.Join(q.Unknown, ", "))
	}
	return nil
}

func cmdBook(ctx context.Context, a *app, actor *models.User, args []string) error {
	fs := newFlags("book")
	items := fs.String("items", "", "cart as TYPE:REFILL:NEW[,TYPE:REFILL:NEW...]")
	address := fs.String("address", "", "pickup address")
	date := fs.String("date", "", "pickup date (YYYY-MM-DD)")
	slot := fs.String("slot", "", "time slot, as listed by `aquaflow settings`")
	notes := fs.String("notes", "", "notes for the rider")
	delivery := fs.Bool("delivery", false, "deliver the refilled gallons back")
	payment := fs.String("payment", string(models.PaymentCashOnDelivery), "Cash on Delivery, Cash or GCash")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cart, err := parseItems(*items)
	if err != nil {
		return err
	}

	b, p, err := a.mirror.CreateBooking(ctx, *actor, syncer.BookingInput{
		Items:          cart,
		PickupAddress:  *address,
		PickupDate:     *date,
		TimeSlot:       *slot,
		Notes:          *notes,
		DeliveryOption: *delivery,
		PaymentMethod:  models.PaymentMethod(*payment),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Booking %s placed: %s, pickup %s %s.\n", b.ID, money(b.Price), b.PickupDate, b.TimeSlot)
	return a.await(ctx, "Booking", p)
}

func cmdBookings(_ context.Context, a *app, actor *models.User, args []string) error {
	fs := newFlags("bookings")
	filter := fs.String("filter", "all", "pending, active, completed, cancelled or all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := report.ParseFilter(*filter)
	if err != nil {
		return err
	}

	var list []models.Booking
	if actor.Type == models.RoleCustomer {
		list = a.mirror.BookingsFor(actor.ID)
	} else {
		list = a.mirror.Bookings()
	}
	list = f.Apply(list)
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No bookings.")
		return nil
	}

	names := userNames(a.mirror.Users())
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCUSTOMER\tSTATUS\tPICKUP\tSLOT\tDELIVERY\tPRICE\tNEXT")
	for _, b := range list {
		next := make([]string, 0, 2)
		for _, s := range lifecycle.Available(b, actor.Type) {
			next = append(next, string(s))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			b.ID, names[b.UserID], b.Status, b.PickupDate, b.TimeSlot, b.DeliveryOption, money(b.Price), strings.Join(next, " | "))
	}
	return tw.Flush()
}

func cmdStatus(ctx context.Context, a *app, actor *models.User, args []string) error {
	fs := newFlags("status")
	id := fs.String("booking", "", "booking id")
	to := fs.String("to", "", "target status, e.g. Accepted or \"Picked Up\"")
	if err := fs.Parse(args); err != nil {
		return err
	}
	status, err := parseStatus(*to)
	if err != nil {
		return err
	}

	p, err := a.mirror.ChangeStatus(ctx, *actor, *id, status)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Booking %s is now %s.\n", *id, status)
	return a.await(ctx, "Status", p)
}

func cmdUsers(_ context.Context, a *app, actor *models.User, _ []string) error {
	if actor.Type != models.RoleAdmin {
		return errAdminOnly
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMOBILE\tEMAIL\tROLE")
	for _, u := range a.mirror.Users() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.FullName, u.Mobile, u.Email, u.Type)
	}
	return tw.Flush()
}

func cmdRole(ctx context.Context, a *app, actor *models.User, args []string) error {
	fs := newFlags("role")
	id := fs.String("user", "", "user id")
	role := fs.String("role", "", "CUSTOMER or RIDER")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := a.mirror.ChangeUserRole(ctx, *actor, *id, models.Role(strings.ToUpper(*role)))
	if err != nil {
		return err
	}
	return a.await(ctx, "Role", p)
}

func cmdSettings(ctx context.Context, a *app, _ *models.User, args []string) error {
	if len(args) == 0 || args[0] == "show" {
		printSettings(a)
		return nil
	}

	actor, err := a.currentUser()
	if err != nil {
		return err
	}
	op, rest := args[0], args[1:]
	var p *syncer.Pending
	switch {
	case op == "add-type" && len(rest) == 2:
		price, perr := decimal.NewFromString(rest[1])
		if perr != nil {
			return fmt.Errorf("price %q: %w", rest[1], perr)
		}
		p, err = a.mirror.AddGallonType(ctx, actor, rest[0], price)
	case op == "remove-type" && len(rest) == 1:
		p, err = a.mirror.RemoveGallonType(ctx, actor, rest[0])
	case op == "add-slot" && len(rest) == 1:
		p, err = a.mirror.AddTimeSlot(ctx, actor, rest[0])
	case op == "remove-slot" && len(rest) == 1:
		p, err = a.mirror.RemoveTimeSlot(ctx, actor, rest[0])
	case op == "gallon-price" && len(rest) == 1:
		price, perr := decimal.NewFromString(rest[0])
		if perr != nil {
			return fmt.Errorf("price %q: %w", rest[0], perr)
		}
		p, err = a.mirror.SetGallonPrice(ctx, actor, price)
	case op == "new-gallon-price" && len(rest) == 1:
		price, perr := decimal.NewFromString(rest[0])
		if perr != nil {
			return fmt.Errorf("price %q: %w", rest[0], perr)
		}
		p, err = a.mirror.SetNewGallonPrice(ctx, actor, price)
	default:
		return errors.New("usage: aquaflow settings [show | add-type NAME PRICE | remove-type NAME | " +
			"add-slot SLOT | remove-slot SLOT | gallon-price PRICE | new-gallon-price PRICE]")
	}
	if err != nil {
		return err
	}
	return a.await(ctx, "Settings", p)
}

func printSettings(a *app) {
	s := a.mirror.Settings()
	fmt.Fprintf(a.out, "Catalog version %d\n\n", a.mirror.Catalog().Version)
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GALLON TYPE\tREFILL PRICE")
	for _, g := range s.GallonTypes {
		fmt.Fprintf(tw, "%s\t%s\n", g.Name, money(g.Price))
	}
	_ = tw.Flush()
	fmt.Fprintf(a.out, "\nDefault refill price: %s\n", money(s.GallonPrice))
	fmt.Fprintf(a.out, "New gallon price:     %s\n", money(s.NewGallonPrice))
	fmt.Fprintf(a.out, "Time slots:           %s\n", strings.Join(s.TimeSlots, ", "))
}

// cmdReset issues a code and asks for it in the same run; codes are never
// written to the store.
func cmdReset(ctx context.Context, a *app, _ *models.User, args []string) error {
	fs := newFlags("reset")
	id := fs.String("id", "", "mobile number or email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.mirror.RequestPasswordReset(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "A reset code was sent.")

	in := bufio.NewScanner(a.in)
	code, err := prompt(a, in, "Code: ")
	if err != nil {
		return err
	}
	password, err := prompt(a, in, "New password: ")
	if err != nil {
		return err
	}

	p, err := a.mirror.ResetPassword(ctx, *id, code, password)
	if err != nil {
		return err
	}
	return a.await(ctx, "Password", p)
}

func prompt(a *app, in *bufio.Scanner, label string) (string, error) {
	fmt.Fprint(a.out, label)
	if !in.Scan() {
		if err := in.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no input")
	}
	return strings.TrimSpace(in.Text()), nil
}

func cmdReport(_ context.Context, a *app, actor *models.User, args []string) error {
	if actor.Type != models.RoleAdmin {
		return errAdminOnly
	}
	fs := newFlags("report")
	period := fs.String("period", "today", "today, weekly, monthly or all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pp, err := report.ParsePeriod(*period)
	if err != nil {
		return err
	}

	bookings := a.mirror.Bookings()
	o := report.BuildOverview(bookings)
	fmt.Fprintf(a.out, "Bookings: %d total, %d pending, %d active, %d completed, %d cancelled\n",
		o.Total, o.Pending, o.Active, o.Completed, o.Cancelled)
	fmt.Fprintf(a.out, "Revenue (all time): %s\n\n", money(o.Revenue))

	pay := report.BuildPayments(bookings, pp, a.now())
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "PAYMENT (%s)\tBOOKINGS\tREVENUE\n", pp)
	for _, m := range pay.ByMethod {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", m.Method, m.Count, money(m.Revenue))
	}
	fmt.Fprintf(tw, "Total\t%d\t%s\n", len(pay.Bookings), money(pay.Total))
	return tw.Flush()
}

func cmdExport(_ context.Context, a *app, actor *models.User, args []string) error {
	if actor.Type != models.RoleAdmin {
		return errAdminOnly
	}
	fs := newFlags("export")
	period := fs.String("period", "all", "payments period: today, weekly, monthly or all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pp, err := report.ParsePeriod(*period)
	if err != nil {
		return err
	}

	now := a.now()
	bookings := a.mirror.Bookings()
	path, err := report.Export(a.cfg.Exports.Path, bookings, a.mirror.Users(), report.BuildPayments(bookings, pp, now), now)
	if err != nil {
		return err
	}
	a.logger.Info().Str("file_path", path).Int("bookings", len(bookings)).Msg("export written")
	fmt.Fprintf(a.out, "Exported to %s\n", path)
	return nil
}

func cmdUnconfirmed(ctx context.Context, a *app, _ *models.User, args []string) error {
	fs := newFlags("unconfirmed")
	limit := fs.Int("limit", 50, "maximum entries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.journal == nil {
		return errors.New("no write journal configured (client.journal_path)")
	}

	tasks, err := a.journal.ListUnconfirmed(ctx, *limit)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(a.out, "Every recorded write was confirmed.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tKIND\tRECORD\tSTATUS\tERROR")
	for _, t := range tasks {
		msg := ""
		if t.LastError != nil {
			msg = *t.LastError
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.UpdatedAt.Format("2006-01-02 15:04"), t.Kind, t.RecordID, t.Status, msg)
	}
	return tw.Flush()
}

func userNames(users []models.User) map[string]string {
	out := make(map[string]string, len(users))
	for _, u := range users {
		out[u.ID] = u.FullName
	}
	return out
}
