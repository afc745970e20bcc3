package mocks

//go:generate mockery --name ResultStore --srcpkg github.com/aevon-lab/nqlflow/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name Submitter --srcpkg github.com/aevon-lab/nqlflow/internal/ingestion --output ./ingestion --outpkg ingestionmocks --with-expecter
