package simd

// u8 code kernels. Lanes accumulate in int32; the worst case
// (dim 4096, all diffs 255) stays well below the int32 limit, so the
// conversion to float32 happens once at the end.

func squaredL2U8Generic(a, b []byte) float32 {
	var sum int32
	for i := range a {
		d := int32(a[i]) - int32(b[i])
		sum += d * d
	}
	return float32(sum)
}

func dotU8Generic(a, b []byte) float32 {
	var sum int32
	for i := range a {
		sum += int32(a[i]) * int32(b[i])
	}
	return float32(sum)
}

func squaredL2U8Unroll8(a, b []byte) float32 {
	var s0, s1, s2, s3 int32
	i := 0
	for ; i+8 <= len(a); i += 8 {
		d0 := int32(a[i]) - int32(b[i])
		d1 := int32(a[i+1]) - int32(b[i+1])
		d2 := int32(a[i+2]) - int32(b[i+2])
		d3 := int32(a[i+3]) - int32(b[i+3])
		d4 := int32(a[i+4]) - int32(b[i+4])
		d5 := int32(a[i+5]) - int32(b[i+5])
		d6 := int32(a[i+6]) - int32(b[i+6])
		d7 := int32(a[i+7]) - int32(b[i+7])
		s0 += d0*d0 + d1*d1
		s1 += d2*d2 + d3*d3
		s2 += d4*d4 + d5*d5
		s3 += d6*d6 + d7*d7
	}
	sum := s0 + s1 + s2 + s3
	for ; i < len(a); i++ {
		d := int32(a[i]) - int32(b[i])
		sum += d * d
	}
	return float32(sum)
}

func dotU8Unroll8(a, b []byte) float32 {
	var s0, s1, s2, s3 int32
	i := 0
	for ; i+8 <= len(a); i += 8 {
		s0 += int32(a[i])*int32(b[i]) + int32(a[i+1])*int32(b[i+1])
		s1 += int32(a[i+2])*int32(b[i+2]) + int32(a[i+3])*int32(b[i+3])
		s2 += int32(a[i+4])*int32(b[i+4]) + int32(a[i+5])*int32(b[i+5])
		s3 += int32(a[i+6])*int32(b[i+6]) + int32(a[i+7])*int32(b[i+7])
	}
	sum := s0 + s1 + s2 + s3
	for ; i < len(a); i++ {
		sum += int32(a[i]) * int32(b[i])
	}
	return float32(sum)
}

func squaredL2U8Unroll16(a, b []byte) float32 {
	var s0, s1, s2, s3 int32
	i := 0
	for ; i+16 <= len(a); i += 16 {
		for j := i; j < i+16; j += 4 {
			d0 := int32(a[j]) - int32(b[j])
			d1 := int32(a[j+1]) - int32(b[j+1])
			d2 := int32(a[j+2]) - int32(b[j+2])
			d3 := int32(a[j+3]) - int32(b[j+3])
			s0 += d0 * d0
			s1 += d1 * d1
			s2 += d2 * d2
			s3 += d3 * d3
		}
	}
	sum := s0 + s1 + s2 + s3
	for ; i < len(a); i++ {
		d := int32(a[i]) - int32(b[i])
		sum += d * d
	}
	return float32(sum)
}

func dotU8Unroll16(a, b []byte) float32 {
	var s0, s1, s2, s3 int32
	i := 0
	for ; i+16 <= len(a); i += 16 {
		for j := i; j < i+16; j += 4 {
			s0 += int32(a[j]) * int32(b[j])
			s1 += int32(a[j+1]) * int32(b[j+1])
			s2 += int32(a[j+2]) * int32(b[j+2])
			s3 += int32(a[j+3]) * int32(b[j+3])
		}
	}
	sum := s0 + s1 + s2 + s3
	for ; i < len(a); i++ {
		sum += int32(a[i]) * int32(b[i])
	}
	return float32(sum)
}
