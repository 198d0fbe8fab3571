package checkout

import (
	"fmt"
	"strings"

	"github.com/xenking/tokolink/internal/domain/catalog"
)

// StorefrontLink builds the deep link back to a seller's storefront.
func StorefrontLink(baseURL, slug string) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimSuffix(baseURL, "/") + "/store/" + slug
}

// ComposeMessage renders the buyer-facing order summary: itemized
// lines, subtotal, discount when present, total, and seller contact.
// number is empty for previews, which omits the order line.
func ComposeMessage(seller *catalog.Seller, number string, sum Summary, link string) string {
	var b strings.Builder

	if number != "" {
		fmt.Fprintf(&b, "Order %s\n", number)
	}
	fmt.Fprintf(&b, "Store: %s\n\n", seller.Name)

	for _, item := range sum.Items {
		fmt.Fprintf(&b, "%dx %s @ %s = %s\n",
			item.Quantity, item.Name,
			item.UnitPrice.StringFixed(2), item.LineSubtotal.StringFixed(2),
		)
	}

	fmt.Fprintf(&b, "\nSubtotal: %s\n", sum.Subtotal.StringFixed(2))
	if sum.Discount.IsPositive() {
		fmt.Fprintf(&b, "Discount (%s): -%s\n", sum.CouponCode, sum.Discount.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total: %s\n", sum.Total.StringFixed(2))

	if seller.Phone != "" {
		fmt.Fprintf(&b, "\nContact: %s\n", seller.Phone)
	}
	if link != "" {
		fmt.Fprintf(&b, "Shop again: %s\n", link)
	}

	return b.String()
}
