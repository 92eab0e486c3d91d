package alerts

import (
	humanize "github.com/dustin/go-humanize"
)

// FormatCurrency renders an amount as "Rs. 1,234.56" for PKR and
// "1,234.56 USD" otherwise.
func FormatCurrency(amount float64, currency string) string {
	s := humanize.FormatFloat("#,###.##", amount)
	if currency == "" || currency == "PKR" {
		return "Rs. " + s
	}
	return s + " " + currency
}

// MaskAccount keeps the last four characters: "****7890".
func MaskAccount(account string) string {
	r := []rune(account)
	if len(r) <= 4 {
		return account
	}
	return "****" + string(r[len(r)-4:])
}

// MaskCNIC keeps the first five and last three characters.
func MaskCNIC(cnic string) string {
	r := []rune(cnic)
	if len(r) < 8 {
		return cnic
	}
	return string(r[:5]) + "-****" + string(r[len(r)-3:])
}
