package service

import "fmt"

// anchoConsecutivo is the minimum width of an order consecutive.
const anchoConsecutivo = 4

// SiguienteConsecutivo formats max+1 zero-padded to at least four digits.
// Width grows past 9999; the value is never truncated.
func SiguienteConsecutivo(max int64) string {
	return fmt.Sprintf("%0*d", anchoConsecutivo, max+1)
}

// NumeroOrden composes the business document number of an order.
func NumeroOrden(tipoDocumento, consecutivo string) string {
	return tipoDocumento + "-" + consecutivo
}
