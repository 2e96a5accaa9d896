package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alovak/cardflow-atm/internal/cardgen"
	"github.com/alovak/cardflow-atm/internal/issuerdev"
)

var (
	flagAccountID = flag.String("account", "", "issuer account ID (UUID); a new account is opened when empty")
	flagIssuer    = flag.String("issuer", "http://127.0.0.1:9090", "issuer base URL")
	flagBalance   = flag.Int64("balance", 0, "opening balance of a new account (minor units)")
	flagCurrency  = flag.String("currency", "USD", "currency of a new account")
	flagLink      = flag.String("link", "", "comma separated account IDs to reach with the card")
	flagPIN       = flag.String("pin", "", "replace the generated PIN")
	flagCardName  = flag.String("card-name", "", "cardholder name for card face imprint")
	flagJSON      = flag.Bool("json", false, "print the issued card as JSON")
	flagVerbose   = flag.Bool("verbose", false, "print full PAN (otherwise masked)")
)

func main() {
	flag.Parse()

	cli := issuerdev.New(strings.TrimRight(*flagIssuer, "/"), &http.Client{Timeout: 10 * time.Second})
	ctx := context.Background()

	accountID := *flagAccountID
	if accountID == "" {
		acc := must1(cli.CreateAccount(ctx, *flagBalance, *flagCurrency))
		accountID = acc.ID
		fmt.Printf("ACCOUNT: %s (opened, balance %d %s)\n", acc.ID, acc.AvailableBalance, acc.Currency)
	}

	card := must1(cli.IssueCard(ctx, accountID))
	pin := card.PIN

	if cardName := normalizeCardName(*flagCardName); cardName != "" {
		named := must1(cli.SetCardholderName(ctx, accountID, card.ID, cardName))
		card.CardholderName = named.CardholderName
		card.CardFace = named.CardFace
	}
	for _, id := range splitList(*flagLink) {
		must(cli.LinkAccount(ctx, accountID, card.ID, id))
	}
	if *flagPIN != "" {
		must(cli.SetPIN(ctx, card.Number, *flagPIN))
		pin = *flagPIN
	}
	card.PIN = pin

	if *flagJSON {
		enc, _ := json.MarshalIndent(card, "", "  ")
		fmt.Println(string(enc))
		return
	}

	printPAN := cardgen.MaskPAN(card.Number)
	if *flagVerbose {
		printPAN = card.Number + "   (WARNING: printing full PAN)"
	}
	fmt.Printf("PAN: %s\nEXP(card-face): %s  EXP(api): %s\n", printPAN, card.CardFace, card.ExpirationDate)
	fmt.Printf("PIN: %s\n", pin)
	if links := splitList(*flagLink); len(links) > 0 {
		fmt.Printf("ACCOUNTS: %s\n", strings.Join(append([]string{accountID}, links...), ", "))
	}
}

func normalizeCardName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	normalized := strings.Join(strings.Fields(trimmed), " ")
	up := strings.ToUpper(normalized)
	if len(up) > 26 {
		return up[:26]
	}
	return up
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func must(err error) {
	if err != nil {
		fail("%v", err)
	}
}
func must1[T any](v T, err error) T {
	if err != nil {
		fail("%v", err)
	}
	return v
}
func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
