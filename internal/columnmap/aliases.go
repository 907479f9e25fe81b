package columnmap

import "github.com/jon4hz/csoportal/internal/database"

// DefaultAliases are the header spellings recognized for each settlement column.
// They are compared after normalization, so spacing, case and punctuation do not matter.
var DefaultAliases = map[string][]string{
	database.FieldBusinessNumber: {
		"사업자번호", "사업자등록번호", "사업자", "등록번호", "business number", "business no", "bizno", "brn",
	},
	database.FieldCSOName: {
		"cso", "cso명", "업체명", "상호", "회사명", "영업대행사", "cso name", "company name",
	},
	database.FieldCustomerCode: {
		"거래처코드", "병의원코드", "요양기관번호", "요양기관기호", "customer code", "client code",
	},
	database.FieldCustomerName: {
		"거래처명", "거래처", "병의원명", "병원명", "요양기관명", "customer", "customer name", "hospital",
	},
	database.FieldProductCode: {
		"제품코드", "품목코드", "보험코드", "product code", "item code",
	},
	database.FieldProductName: {
		"제품명", "품목명", "제품", "품명", "product", "product name", "item",
	},
	database.FieldQuantity: {
		"수량", "처방수량", "qty", "quantity",
	},
	database.FieldUnitPrice: {
		"단가", "보험약가", "약가", "unit price", "price",
	},
	database.FieldPrescriptionAmount: {
		"처방금액", "처방액", "금액", "매출액", "prescription amount", "amount", "sales",
	},
	database.FieldCommissionRate: {
		"수수료율", "요율", "commission rate", "rate",
	},
	database.FieldCommissionAmount: {
		"수수료", "수수료금액", "정산금액", "지급액", "commission", "commission amount",
	},
	database.FieldNote: {
		"비고", "메모", "note", "memo", "remark", "remarks",
	},
}
