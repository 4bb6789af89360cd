package posting

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/pashumandi/mandi-gateway/internal/config"
	"github.com/pashumandi/mandi-gateway/internal/domain"
)

// Quote is the posting fee for one ad and the UPI target to pay it to.
type Quote struct {
	BasePrice        int64  `json:"base_price"`
	EffectivePrice   int64  `json:"effective_price"`
	IsVip            bool   `json:"is_vip"`
	PromoCode        string `json:"promo_code,omitempty"`
	PromoApplied     bool   `json:"promo_applied"`
	Free             bool   `json:"free"`
	SkipInstructions bool   `json:"skip_instructions"`
	Message          string `json:"message,omitempty"`
	UPIID            string `json:"upi_id"`
	UPILink          string `json:"upi_link"`
	QRCodeURL        string `json:"qr_code_url"`
}

type Pricer struct {
	cfg config.PaymentConfig
}

func NewPricer(cfg config.PaymentConfig) *Pricer {
	return &Pricer{cfg: cfg}
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Quote prices an ad. When apply is set the code was submitted explicitly, so
// an empty code is an error rather than "no code". A rejected code leaves the
// base price in place; the returned error says why.
func (p *Pricer) Quote(isVip bool, code string, apply bool) (Quote, error) {
	q := Quote{IsVip: isVip, BasePrice: p.cfg.RegularPrice, UPIID: p.cfg.UPIID}
	if isVip {
		q.BasePrice = p.cfg.VIPPrice
	}
	q.EffectivePrice = q.BasePrice

	code = NormalizeCode(code)
	var err error
	switch {
	case code == "":
		if apply {
			err = domain.ErrEmptyPromo
		}
	case p.cfg.FreeCode != "" && code == p.cfg.FreeCode:
		q.PromoCode, q.PromoApplied, q.Free, q.SkipInstructions = code, true, true, true
		q.EffectivePrice = 0
		q.Message = `Special code applied. Your ad is free! Click "Publish My Ad" to post instantly.`
	case isVip:
		err = domain.ErrPromoNotForVIP
	case slices.Contains(p.cfg.PromoCodes, code):
		q.PromoCode, q.PromoApplied = code, true
		q.EffectivePrice = p.cfg.DiscountedPrice
		q.Message = fmt.Sprintf("Promo code applied! New price: ₹%d", p.cfg.DiscountedPrice)
	default:
		err = domain.ErrInvalidPromo
	}
	if err != nil {
		q.Message = promoErrorMessage(err)
	}

	q.UPILink = p.upiLink(q.EffectivePrice)
	q.QRCodeURL = p.qrURL(q.UPILink)
	return q, err
}

func promoErrorMessage(err error) string {
	switch err {
	case domain.ErrEmptyPromo:
		return "Please enter a promo code."
	case domain.ErrPromoNotForVIP:
		return "This promo code is not valid for VIP Ads."
	default:
		return "Invalid promo code. Please try again."
	}
}

func (p *Pricer) upiLink(amount int64) string {
	return fmt.Sprintf("upi://pay?pa=%s&am=%d&cu=INR&tn=%s", p.cfg.UPIID, amount, p.cfg.PayeeNote)
}

func (p *Pricer) qrURL(link string) string {
	if p.cfg.QRBaseURL == "" {
		return ""
	}
	v := url.Values{}
	v.Set("cht", "qr")
	v.Set("chs", "220x220")
	v.Set("chl", link)
	v.Set("choe", "UTF-8")
	return p.cfg.QRBaseURL + "?" + v.Encode()
}
