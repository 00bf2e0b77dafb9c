package engine

// previewHeaderSize - 바이너리 프레임 앞의 전송 헤더 길이.
// ComfyUI 는 event type(uint32) + image format(uint32) 으로 보이지만 검증된 레이아웃은 아님.
const previewHeaderSize = 8

// PreviewFrame - 생성 중 엔진이 보내는 저해상도 프리뷰
type PreviewFrame struct {
	Header [previewHeaderSize]byte
	Image  []byte
}

// DecodePreviewFrame - 바이너리 메시지에서 헤더를 떼고 이미지 바이트 반환.
// 헤더보다 짧거나 같은 메시지는 false.
func DecodePreviewFrame(msg []byte) (PreviewFrame, bool) {
	if len(msg) <= previewHeaderSize {
		return PreviewFrame{}, false
	}
	var f PreviewFrame
	copy(f.Header[:], msg[:previewHeaderSize])
	f.Image = append([]byte(nil), msg[previewHeaderSize:]...)
	return f, true
}
