// Package i18n holds the shopper-facing message catalogue.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	CartLoadFailed         = "cart.load_failed"
	AddItemFailed          = "cart.add_item_failed"
	AddBundleFailed        = "cart.add_bundle_failed"
	UpdateItemFailed       = "cart.update_item_failed"
	RemoveItemFailed       = "cart.remove_item_failed"
	MergeFailed            = "cart.merge_failed"
	MergeSucceeded         = "cart.merge_succeeded"
	ApplyPromotionFailed   = "cart.apply_promotion_failed"
	PromoCodeInvalid       = "cart.promo_code_invalid"
	InvalidEmail           = "email.invalid"
	EmptyCart              = "email.empty_cart"
	SessionExpired         = "session.expired"
	EmailCartFailed        = "email.failed"
	EmailCartSent          = "email.sent"
	OrderConflict          = "order.conflict"
	OrderValidationFailed  = "order.validation_failed"
	OrderCartGone          = "order.cart_gone"
	OrderGeneric           = "order.generic"
	OrderPlaced            = "order.placed"
	FieldRequired          = "field.required"
	PhoneInvalid           = "field.phone_invalid"
	StoreRequired          = "field.store_required"
	PaymentMethodRequired  = "field.payment_method_required"
	PaymentMethodForbidden = "field.payment_method_unavailable"
)

var supported = []language.Tag{language.Vietnamese, language.English}

var entries = map[string][2]string{
	CartLoadFailed:         {"Không thể tải giỏ hàng. Vui lòng thử lại.", "Could not load your cart. Please try again."},
	AddItemFailed:          {"Không thể thêm sản phẩm vào giỏ hàng.", "Could not add the product to your cart."},
	AddBundleFailed:        {"Không thể thêm combo vào giỏ hàng.", "Could not add the bundle to your cart."},
	UpdateItemFailed:       {"Không thể cập nhật số lượng.", "Could not update the quantity."},
	RemoveItemFailed:       {"Không thể xoá sản phẩm khỏi giỏ hàng.", "Could not remove the product from your cart."},
	MergeFailed:            {"Không thể mở giỏ hàng được chia sẻ.", "Could not open the shared cart."},
	MergeSucceeded:         {"Đã thêm giỏ hàng được chia sẻ vào giỏ của bạn.", "The shared cart was added to your cart."},
	ApplyPromotionFailed:   {"Không thể áp dụng mã giảm giá.", "Could not apply the promo code."},
	PromoCodeInvalid:       {"Mã giảm giá không hợp lệ.", "The promo code is not valid."},
	InvalidEmail:           {"Địa chỉ email không hợp lệ.", "Please enter a valid email address."},
	EmptyCart:              {"Giỏ hàng của bạn đang trống.", "Your cart is empty."},
	SessionExpired:         {"Phiên mua sắm đã hết hạn. Vui lòng tải lại trang.", "Your shopping session expired. Please reload the page."},
	EmailCartFailed:        {"Không thể gửi giỏ hàng qua email. Vui lòng thử lại sau.", "Could not email your cart. Please try again later."},
	EmailCartSent:          {"Đã gửi giỏ hàng tới %s.", "Your cart was sent to %s."},
	OrderConflict:          {"Đơn hàng đã được tạo trước đó.", "This order has already been created."},
	OrderValidationFailed:  {"Thông tin đơn hàng chưa hợp lệ.", "Some order details are invalid."},
	OrderCartGone:          {"Giỏ hàng không còn tồn tại. Vui lòng quay lại giỏ hàng.", "Your cart no longer exists. Please go back to your cart."},
	OrderGeneric:           {"Đã có lỗi xảy ra khi đặt hàng. Vui lòng thử lại.", "Something went wrong placing your order. Please try again."},
	OrderPlaced:            {"Đặt hàng thành công! Mã đơn hàng: %s", "Order placed! Order number: %s"},
	FieldRequired:          {"Vui lòng nhập %s.", "Please enter %s."},
	PhoneInvalid:           {"Số điện thoại không hợp lệ.", "Please enter a valid phone number."},
	StoreRequired:          {"Vui lòng chọn cửa hàng nhận hàng.", "Please choose a pick-up store."},
	PaymentMethodRequired:  {"Vui lòng chọn phương thức thanh toán.", "Please choose a payment method."},
	PaymentMethodForbidden: {"Phương thức thanh toán này không khả dụng cho đơn hàng.", "This payment method is not available for your order."},
}

var (
	builder = catalog.NewBuilder()
	matcher = language.NewMatcher(supported)
)

func init() {
	for key, msgs := range entries {
		for i, tag := range supported {
			if err := builder.SetString(tag, key, msgs[i]); err != nil {
				panic(err)
			}
		}
	}
}

// Translator renders catalogue messages in one locale.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// New picks the closest supported locale, falling back to Vietnamese.
func New(locale string) *Translator {
	_, idx, _ := matcher.Match(language.Make(locale))
	tag := supported[idx]
	return &Translator{tag: tag, printer: message.NewPrinter(tag, message.Catalog(builder))}
}

func (t *Translator) T(key string, args ...interface{}) string {
	return t.printer.Sprintf(key, args...)
}

func (t *Translator) Locale() string {
	return t.tag.String()
}
