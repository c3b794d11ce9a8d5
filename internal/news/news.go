package news

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/pep299/news-chat/internal/model"
)

// Timeout bounds one search call. Searches are not retried.
const Timeout = 15 * time.Second

// Searcher finds recent articles for a keyword.
type Searcher interface {
	Search(ctx context.Context, keyword string) ([]model.Article, error)
}

const (
	msgEmptyKeyword = "키워드를 입력해 주세요."
	msgMissingKey   = "NEWS_API_KEY가 설정되지 않았어요. 서버 실행 시 환경변수로 넣어 주세요."
	msgUpstream     = "뉴스 API 오류"
	msgParse        = "응답 파싱 오류"
	msgTransport    = "뉴스 서버 연결 실패"
	msgTimeout      = "요청 시간 초과"
)

// NormalizeKeyword collapses whitespace and caps the keyword length.
func NormalizeKeyword(keyword string) (string, error) {
	keyword = model.Truncate(model.SafeText(keyword), model.MaxKeywordChars)
	if keyword == "" {
		return "", model.NewError(model.ValidationFailure, msgEmptyKeyword)
	}
	return keyword, nil
}

// transportError distinguishes timeouts from other connection failures.
func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return model.WrapError(model.TransportFailure, msgTimeout, err)
	}
	return model.WrapError(model.TransportFailure, msgTransport, err)
}
