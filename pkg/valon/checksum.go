package valon

// Checksum вычисляет контрольную сумму кадра: сумма всех байтов по модулю 256.
// Без начального значения и полинома - именно этого ждет прошивка.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// VerifyChecksum пересчитывает сумму и сравнивает с принятой.
//
// Аддитивная сумма ловит любую одиночную инверсию бита, но пропускает пары
// инверсий, компенсирующие друг друга (например, +1 в одном байте и -1 в другом).
func VerifyChecksum(data []byte, checksum byte) bool {
	return Checksum(data) == checksum
}

// appendChecksum дописывает контрольную сумму в конец кадра.
func appendChecksum(frame []byte) []byte {
	return append(frame, Checksum(frame))
}
