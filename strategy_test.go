package cardcache

import "testing"

func TestContentDisposition(t *testing.T) {
	for filename, expected := range map[string]string{
		"Oriane_Dupont.vcf":  `attachment; filename="Oriane_Dupont.vcf"`,
		"_Dupont.vcf":        `attachment; filename="_Dupont.vcf"`,
		"Jean Paul_Roux.vcf": `attachment; filename="Jean Paul_Roux.vcf"`,
		"Zoë_Roux.vcf":       "attachment; filename*=utf-8''Zo%C3%AB_Roux.vcf",
	} {
		if cd := contentDisposition(filename); cd != expected {
			t.Fatalf("%s: Content-Disposition is %s", filename, cd)
		}
	}
}
