package parcel

import "fmt"

// Land-use and subtype names as documented on the portal's legend.
// Codes missing from these tables render as Unknown rather than being
// dropped, unknown codes still count toward the summary.

var landUseNames = map[int64]string{
	100000:  "سكني (Residential)",
	200000:  "تجاري (Commercial)",
	300000:  "خدمات عامة (Public Services)",
	400000:  "مرافق عامة (Public Facilities)",
	500000:  "زراعي (Agricultural)",
	600000:  "صناعي (Industrial)",
	700000:  "ترفيهي (Recreational)",
	800000:  "طرق (Roads)",
	900000:  "مياه (Water)",
	1000000: "سكني متعدد الوحدات (Multi-Unit Residential/Apartments)",
	5555:    "غير محدد (Undefined)",
	0:       "فارغ (Empty)",
}

var subtypeNames = map[int64]string{
	101000:  "سكني فردي (Single Residential/Villa)",
	102000:  "سكني متعدد (Multi Residential)",
	103000:  "سكني مجمع (Residential Complex)",
	1001000: "عمارة سكنية (Apartment Building)",
	1002000: "مجمع سكني (Residential Complex)",
	1006000: "سكني مختلط (Mixed Residential)",
	201000:  "تجاري عام (General Commercial)",
	202000:  "مركز تجاري (Shopping Center)",
	203000:  "سوق (Market)",
	204000:  "محلات (Shops)",
	205000:  "مكاتب (Offices)",
	206000:  "فندق (Hotel)",
	207000:  "مختلط تجاري سكني (Mixed Commercial/Residential)",
	208000:  "خدمات تجارية (Commercial Services)",
	301000:  "تعليمي (Educational)",
	302000:  "صحي (Healthcare)",
	303000:  "ديني (Religious)",
	304000:  "حكومي (Government)",
	305000:  "أمني (Security)",
	306000:  "حديقة عامة (Public Park)",
	307000:  "مقبرة (Cemetery)",
	401000:  "كهرباء (Electricity)",
	402000:  "مياه (Water)",
	403000:  "صرف صحي (Sewage)",
	404000:  "اتصالات (Telecommunications)",
	405000:  "نقل (Transportation)",
	501000:  "زراعي عام (General Agricultural)",
	502000:  "مزرعة (Farm)",
	503000:  "بستان (Orchard)",
	504000:  "حظيرة (Barn)",
	506000:  "مشتل (Nursery)",
	507000:  "أرض زراعية فارغة (Empty Agricultural Land)",
	601000:  "صناعي عام (General Industrial)",
	602000:  "مصنع (Factory)",
	603000:  "ورشة (Workshop)",
	604000:  "مستودع (Warehouse)",
	605000:  "منطقة صناعية (Industrial Zone)",
	701000:  "ترفيهي عام (General Recreational)",
	801000:  "شارع رئيسي (Main Street)",
	802000:  "شارع فرعي (Side Street)",
	901000:  "مسطح مائي (Water Body)",
	904000:  "قناة مياه (Water Channel)",
}

func LandUseName(code int64) string {
	name, ok := landUseNames[code]
	if !ok {
		return fmt.Sprintf("Unknown (%d)", code)
	}
	return name
}

func SubtypeName(code int64) string {
	name, ok := subtypeNames[code]
	if !ok {
		return fmt.Sprintf("Unknown (%d)", code)
	}
	return name
}
