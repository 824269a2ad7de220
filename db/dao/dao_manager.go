package dao

type DaoManager struct {
	*ElectionDao
	*TokenDao
	*BallotDao
	*AuditDao
}

func NewDaoManager(electionDao *ElectionDao, tokenDao *TokenDao, ballotDao *BallotDao, auditDao *AuditDao) *DaoManager {
	return &DaoManager{
		ElectionDao: electionDao,
		TokenDao:    tokenDao,
		BallotDao:   ballotDao,
		AuditDao:    auditDao,
	}
}
