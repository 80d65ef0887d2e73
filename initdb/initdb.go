package initdb

import (
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
	"gorm.io/gorm"

	"github.com/rqzrqh/channel_hub/common"
	"github.com/rqzrqh/channel_hub/dao"
	"github.com/rqzrqh/channel_hub/model"
)

var log = logging.Logger("initdb")

const (
	singleAssetTwoPartyCoinTransferEncoding  = "tuple(address to, uint256 amount)[2]"
	multiAssetMultiPartyCoinTransferEncoding = "tuple(address to, uint256 amount)[][]"
)

// AppAddresses carries the deployed app-definition contract addresses for
// one network.
type AppAddresses struct {
	SimpleTwoPartySwap           string
	UnidirectionalTransfer       string
	UnidirectionalLinkedTransfer string
}

// InitDatabase creates the hub tables and seeds the application registry.
func InitDatabase(db *gorm.DB, network string, addrs AppAddresses) error {
	if checkExist(db) {
		return xerrors.New("database has been initialized")
	}

	if err := createTables(db); err != nil {
		return err
	}

	return seedRegistry(db, network, addrs)
}

func checkExist(db *gorm.DB) bool {
	return db.Migrator().HasTable(&model.AppRegistry{})
}

func createTables(db *gorm.DB) error {
	startTime := time.Now()
	defer func() {
		log.Infof("create tables cost %v", time.Since(startTime))
	}()

	return dao.CreateTables(db)
}

// DefaultApps is the registry seed: the supported apps, their encodings,
// and the node-install policy. The transfer app is only ever installed
// virtually between two clients, never on the node itself.
func DefaultApps(network string, addrs AppAddresses) []*model.AppRegistry {
	return []*model.AppRegistry{
		{
			Name:                 common.UnidirectionalTransferAppName,
			Network:              network,
			OutcomeType:          int(common.OutcomeSingleAssetTwoPartyCoinTransfer),
			AppDefinitionAddress: addrs.UnidirectionalTransfer,
			StateEncoding: "tuple(uint8 stage, " + singleAssetTwoPartyCoinTransferEncoding +
				" transfers, uint256 turnNum, bool finalized)",
			ActionEncoding:   "tuple(uint8 actionType, uint256 amount)",
			AllowNodeInstall: false,
		},
		{
			Name:                 common.SimpleTwoPartySwapAppName,
			Network:              network,
			OutcomeType:          int(common.OutcomeMultiAssetMultiPartyCoinTransfer),
			AppDefinitionAddress: addrs.SimpleTwoPartySwap,
			StateEncoding:        "tuple(" + multiAssetMultiPartyCoinTransferEncoding + " coinTransfers)",
			AllowNodeInstall:     true,
		},
		{
			Name:                 common.UnidirectionalLinkedTransferAppName,
			Network:              network,
			OutcomeType:          int(common.OutcomeSingleAssetTwoPartyCoinTransfer),
			AppDefinitionAddress: addrs.UnidirectionalLinkedTransfer,
			StateEncoding: "tuple(uint8 stage, " + singleAssetTwoPartyCoinTransferEncoding +
				" transfers, bytes32 linkedHash, uint256 turnNum, bool finalized)",
			ActionEncoding:   "tuple(uint256 amount, address assetId, bytes32 paymentId, bytes32 preImage)",
			AllowNodeInstall: true,
		},
	}
}

func seedRegistry(db *gorm.DB, network string, addrs AppAddresses) error {
	for _, entry := range DefaultApps(network, addrs) {
		if err := db.Create(entry).Error; err != nil {
			return xerrors.Errorf("seed registry entry %v: %w", entry.Name, err)
		}
		log.Infof("registered app %v on %v at %v", entry.Name, network, entry.AppDefinitionAddress)
	}
	return nil
}
