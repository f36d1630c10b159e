package captcha

import (
	"bytes"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	redisrepo "github.com/mwx2006/blessing-skin-server/internal/storage/redis"
)

type ServiceSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	repo    *redisrepo.RedisRepo
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := goredis.NewClient(&goredis.Options{
		Addr: s.mini.Addr(),
	})

	s.repo = redisrepo.NewWithClient(client)
	s.service = New(s.repo)
	s.ctx = context.Background()
}

func (s *ServiceSuite) phrase(sessionID string) string {
	phrase, err := s.repo.TakeCaptcha(s.ctx, sessionID)
	s.Require().NoError(err)
	s.Require().NoError(s.repo.PutCaptcha(s.ctx, sessionID, phrase, phraseTTL))
	return phrase
}

func (s *ServiceSuite) TestGenerateRendersImageAndStoresPhrase() {
	var buf bytes.Buffer

	s.Require().NoError(s.service.Generate(s.ctx, "sid", &buf))

	s.NotZero(buf.Len())
	s.NotEmpty(s.phrase("sid"))
}

func (s *ServiceSuite) TestCheckAcceptsStoredPhrase() {
	var buf bytes.Buffer
	s.Require().NoError(s.service.Generate(s.ctx, "sid", &buf))

	ok, err := s.service.Check(s.ctx, "sid", s.phrase("sid"))
	s.Require().NoError(err)
	s.True(ok)
}

func (s *ServiceSuite) TestCheckIsCaseInsensitive() {
	s.Require().NoError(s.repo.PutCaptcha(s.ctx, "sid", "AbCd", phraseTTL))

	ok, err := s.service.Check(s.ctx, "sid", "aBcD")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *ServiceSuite) TestPhraseIsConsumedOnFailedCheck() {
	s.Require().NoError(s.repo.PutCaptcha(s.ctx, "sid", "abcd", phraseTTL))

	ok, err := s.service.Check(s.ctx, "sid", "wrong")
	s.Require().NoError(err)
	s.False(ok)

	// Even the right answer no longer passes.
	ok, err = s.service.Check(s.ctx, "sid", "abcd")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *ServiceSuite) TestCheckWithoutPhraseFails() {
	ok, err := s.service.Check(s.ctx, "nobody", "anything")
	s.Require().NoError(err)
	s.False(ok)
}
