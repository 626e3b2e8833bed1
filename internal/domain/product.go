package domain

// ProductType описывает тип товара в каталоге магазина.
type ProductType string

const (
	// ProductTypePhysical — физический товар (бумажная книга), требует учёта остатков и доставки.
	ProductTypePhysical ProductType = "physical"
	// ProductTypeEbook — электронная книга, остатки не учитываются.
	ProductTypeEbook ProductType = "ebook"
	// ProductTypeAudiobook — аудиокнига, остатки не учитываются.
	ProductTypeAudiobook ProductType = "audiobook"
)

// Valid проверяет, что тип товара относится к поддерживаемым значениям.
func (t ProductType) Valid() bool {
	switch t {
	case ProductTypePhysical, ProductTypeEbook, ProductTypeAudiobook:
		return true
	default:
		return false
	}
}

// StockManaged сообщает, ведётся ли для данного типа учёт остатков.
// Цифровые товары считаются бесконечно доступными.
// Сам каталог управляется внешней подсистемой: ядро checkout ссылается на
// товар только по идентификатору.
func (t ProductType) StockManaged() bool {
	return t == ProductTypePhysical
}
