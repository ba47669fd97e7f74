package bot

import "strings"

// FAQEntry is one FAQ topic.
type FAQEntry struct {
	Key      string
	Question string
	Answer   string
}

// contactNumberPlaceholder is replaced with the shop's WhatsApp number.
const contactNumberPlaceholder = "{whatsapp}"

var faqEntries = []FAQEntry{
	{
		Key:      "delivery",
		Question: "🚚 Delivery Information",
		Answer: "🌺 *Delivery Details:*\n\n" +
			"• We offer same-day delivery for orders\n" +
			"• Delivery areas: Abu Dhabi\n" +
			"• Delivery fee: AED 20 (free for orders over AED 150)\n" +
			"• Delivery hours: 10am - 10pm\n\n" +
			"We carefully package all bouquets to ensure they arrive fresh and beautiful!",
	},
	{
		Key:      "payment",
		Question: "💳 Payment Methods",
		Answer: "💳 *Payment Options:*\n\n" +
			"We accept:\n" +
			"• Cash on delivery\n" +
			"• Credit/Debit Cards (Visa, MasterCard)\n" +
			"• Apple Pay & Google Pay\n" +
			"• Bank transfer (for advance orders)\n\n" +
			"All online payments are secured with SSL encryption.",
	},
	{
		Key:      "care",
		Question: "🌼 Flower Care Tips",
		Answer: "💧 *Keeping Flowers Fresh:*\n\n" +
			"1. Trim stems at 45° angle before placing in water\n" +
			"2. Use clean vase and fresh water daily\n" +
			"3. Add flower food if provided\n" +
			"4. Keep away from direct sunlight and heat\n" +
			"5. Remove any submerged leaves\n\n" +
			"Follow these tips to enjoy your flowers for 7-10 days!",
	},
	{
		Key:      "contact",
		Question: "📞 Contact Information",
		Answer: "📱 *Reach Us Anytime:*\n\n" +
			"• WhatsApp: +" + contactNumberPlaceholder + "\n" +
			"• Phone: +" + contactNumberPlaceholder + "\n" +
			"• Email: contact@prostoflowers.com\n" +
			"• Store: Al Rutab St, Al Nahyan, Abu Dhabi - UAE\n" +
			"• https://maps.app.goo.gl/sz2fChViqh7q2zTAA\n\n" +
			"We're available 10 AM - 10 PM daily!",
	},
}

// FAQ holds the FAQ topics with shop details filled in.
type FAQ struct {
	entries []FAQEntry
}

// NewFAQ returns the shop FAQ with the WhatsApp number substituted.
func NewFAQ(whatsAppNumber string) *FAQ {
	entries := make([]FAQEntry, len(faqEntries))
	for i, e := range faqEntries {
		e.Answer = strings.ReplaceAll(e.Answer, contactNumberPlaceholder, EscapeMarkdown(whatsAppNumber))
		entries[i] = e
	}
	return &FAQ{entries: entries}
}

// Entries returns the topics in menu order.
func (f *FAQ) Entries() []FAQEntry {
	return f.entries
}

// Lookup returns the topic with the given key.
func (f *FAQ) Lookup(key string) (FAQEntry, bool) {
	for _, e := range f.entries {
		if e.Key == key {
			return e, true
		}
	}
	return FAQEntry{}, false
}
