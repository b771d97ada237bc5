package export

import "github.com/jung-kurt/gofpdf"

// winAnsi maps UTF-8 text onto the cp1252 encoding of gofpdf's core fonts.
// Runes outside cp1252 print as '.'.
var winAnsi = gofpdf.New("P", "mm", "A4", "").UnicodeTranslatorFromDescriptor("")
