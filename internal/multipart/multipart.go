// Пакет multipart — извлечение файловой части из тела multipart/form-data.
//
// Разбор побайтовый: полезная нагрузка бинарная и может содержать CRLF и
// последовательности, похожие на разделитель. Разделитель считается найденным
// только при полном совпадении маркера "CRLF--<boundary>" и корректном
// продолжении после него ("--", CRLF после необязательных пробелов или конец тела).
package multipart

import (
	"bytes"
	"errors"
	"net/url"
	"strings"
)

// Ошибки разбора. Вызывающий код сопоставляет их с кодами ответа клиенту.
var (
	// ErrNotMultipart — Content-Type не multipart/form-data.
	ErrNotMultipart = errors.New("тело запроса не multipart/form-data")
	// ErrBoundaryMissing — в Content-Type нет параметра boundary.
	ErrBoundaryMissing = errors.New("не указан boundary")
	// ErrNoFilePart — ни одна часть не содержит filename.
	ErrNoFilePart = errors.New("файловая часть не найдена")
	// ErrMalformedBody — тело обрывается внутри части.
	ErrMalformedBody = errors.New("некорректное тело multipart")
)

var (
	crlf     = []byte("\r\n")
	crlfcrlf = []byte("\r\n\r\n")
	dashes   = []byte("--")
)

// Part — извлечённая файловая часть.
// Data ссылается на исходный буфер тела без копирования.
type Part struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ParseBoundary проверяет Content-Type запроса и возвращает boundary.
// Значение boundary может быть в кавычках.
func ParseBoundary(contentType string) (string, error) {
	mediaType, params := parseHeaderValue(contentType)
	if !strings.EqualFold(mediaType, "multipart/form-data") {
		return "", ErrNotMultipart
	}

	boundary := params["boundary"]
	if boundary == "" || strings.ContainsAny(boundary, "\r\n") {
		return "", ErrBoundaryMissing
	}
	return boundary, nil
}

// Extract находит первую часть с непустым filename в Content-Disposition.
// Части без filename (обычные поля формы) пропускаются.
func Extract(body []byte, boundary string) (*Part, error) {
	if boundary == "" {
		return nil, ErrBoundaryMissing
	}

	pos, ok := findOpening(body, boundary)
	if !ok {
		return nil, ErrNoFilePart
	}

	for {
		// Завершающий разделитель "--<boundary>--"
		if bytes.HasPrefix(body[pos:], dashes) {
			return nil, ErrNoFilePart
		}

		pos = skipPadding(body, pos)
		if bytes.HasPrefix(body[pos:], crlf) {
			pos += len(crlf)
		}
		if pos >= len(body) {
			return nil, ErrMalformedBody
		}

		var headerBlock []byte
		var dataStart int
		if bytes.HasPrefix(body[pos:], crlf) {
			// Часть без заголовков
			dataStart = pos + len(crlf)
		} else {
			idx := bytes.Index(body[pos:], crlfcrlf)
			if idx < 0 {
				return nil, ErrMalformedBody
			}
			headerBlock = body[pos : pos+idx]
			dataStart = pos + idx + len(crlfcrlf)
		}

		dataEnd, next, ok := findDelimiter(body, dataStart, boundary)
		if !ok {
			return nil, ErrMalformedBody
		}

		headers := parseHeaders(headerBlock)
		if filename := filenameFrom(headers["content-disposition"]); filename != "" {
			return &Part{
				Filename:    filename,
				ContentType: headers["content-type"],
				Data:        body[dataStart:dataEnd],
			}, nil
		}

		pos = next
	}
}

// findOpening ищет открывающий разделитель "--<boundary>" (допускается преамбула).
// Возвращает позицию сразу после маркера.
func findOpening(body []byte, boundary string) (int, bool) {
	marker := []byte("--" + boundary)
	from := 0
	for from <= len(body) {
		idx := bytes.Index(body[from:], marker)
		if idx < 0 {
			return 0, false
		}
		at := from + idx
		after := at + len(marker)
		if (at == 0 || body[at-1] == '\n') && delimiterEnds(body[after:]) {
			return after, true
		}
		from = at + 1
	}
	return 0, false
}

// findDelimiter ищет следующий разделитель "CRLF--<boundary>" начиная с from.
// Возвращает конец данных части и позицию сразу после маркера.
// Если CRLF перед завершающим разделителем отсутствует, принимается
// голый "--<boundary>--".
func findDelimiter(body []byte, from int, boundary string) (end, next int, ok bool) {
	marker := []byte("\r\n--" + boundary)
	for i := from; i <= len(body); {
		idx := bytes.Index(body[i:], marker)
		if idx < 0 {
			break
		}
		at := i + idx
		after := at + len(marker)
		if delimiterEnds(body[after:]) {
			return at, after, true
		}
		i = at + 1
	}

	terminal := []byte("--" + boundary + "--")
	if idx := bytes.Index(body[from:], terminal); idx >= 0 {
		at := from + idx
		return at, at + len(terminal) - len(dashes), true
	}
	return 0, 0, false
}

// delimiterEnds проверяет, что за маркером идёт допустимое продолжение,
// а не произвольные байты полезной нагрузки: "--", конец тела или
// необязательные пробелы и табуляции, за которыми следует CRLF.
func delimiterEnds(rest []byte) bool {
	if len(rest) == 0 || bytes.HasPrefix(rest, dashes) {
		return true
	}
	return bytes.HasPrefix(rest[skipPadding(rest, 0):], crlf)
}

// skipPadding пропускает пробелы и табуляции после разделителя.
func skipPadding(body []byte, pos int) int {
	for pos < len(body) && (body[pos] == ' ' || body[pos] == '\t') {
		pos++
	}
	return pos
}

// parseHeaders разбирает блок "Name: value" строк, разделённых CRLF.
// Имена приводятся к нижнему регистру.
func parseHeaders(block []byte) map[string]string {
	headers := make(map[string]string)
	if len(block) == 0 {
		return headers
	}
	for _, line := range bytes.Split(block, crlf) {
		name, value, found := bytes.Cut(line, []byte(":"))
		if !found {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(string(name)))
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(string(value))
	}
	return headers
}

// filenameFrom извлекает имя файла из Content-Disposition.
// filename* (RFC 5987) имеет приоритет над filename. Имя декодируется
// из percent-encoding, компоненты пути отбрасываются.
func filenameFrom(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params := parseHeaderValue(disposition)

	name, ok := params["filename*"]
	if ok {
		name = decodeExtended(name)
	} else {
		name = params["filename"]
	}
	if name == "" {
		return ""
	}

	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return baseName(name)
}

// decodeExtended снимает префикс charset'lang' у значения filename*.
func decodeExtended(value string) string {
	_, rest, found := strings.Cut(value, "'")
	if !found {
		return value
	}
	_, encoded, found := strings.Cut(rest, "'")
	if !found {
		return value
	}
	return encoded
}

// baseName отбрасывает директории, включая windows-разделители.
func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
}

// parseHeaderValue разбирает значение вида `token; key=value; key="quoted value"`.
// Точки с запятой внутри кавычек не разделяют параметры.
// Ключи параметров приводятся к нижнему регистру.
func parseHeaderValue(v string) (string, map[string]string) {
	parts := splitOutsideQuotes(v, ';')
	params := make(map[string]string, len(parts))
	if len(parts) == 0 {
		return "", params
	}

	for _, p := range parts[1:] {
		key, value, found := strings.Cut(p, "=")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		params[key] = unquote(strings.TrimSpace(value))
	}
	return strings.TrimSpace(parts[0]), params
}

// splitOutsideQuotes делит строку по sep, игнорируя sep внутри кавычек.
func splitOutsideQuotes(s string, sep byte) []string {
	var parts []string
	inQuotes := false
	escaped := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inQuotes:
			escaped = true
		case c == '"':
			inQuotes = !inQuotes
		case c == sep && !inQuotes:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// unquote снимает кавычки и экранирование обратной косой чертой.
func unquote(v string) string {
	if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
		return v
	}
	v = v[1 : len(v)-1]
	if !strings.Contains(v, `\`) {
		return v
	}
	var b strings.Builder
	escaped := false
	for i := 0; i < len(v); i++ {
		if v[i] == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteByte(v[i])
	}
	return b.String()
}
